// Package sql implements the read-only gate: the textual checks that keep
// generated or user-supplied statements from mutating a data source.
package sql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotReadOnly indicates the statement does not begin with SELECT or WITH.
	ErrNotReadOnly = errors.New("statement is not a SELECT or WITH query")

	// ErrMultipleStatements indicates the text contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed")

	// ErrForbiddenKeyword indicates the statement contains a deny-listed
	// mutating or privilege keyword.
	ErrForbiddenKeyword = errors.New("forbidden keyword")
)

// denyList is the fixed set of mutating/privilege keywords refused as
// standalone tokens. This is a deliberately blunt textual heuristic, not
// a SQL parser: a keyword inside a string literal ('please DROP me')
// still trips it. That over-rejection is a documented limitation of the
// gate, kept in preference to parsing.
var denyList = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE", "ALTER", "CREATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "MERGE", "CALL",
}

// Normalize trims whitespace and strips a single trailing semicolon.
func Normalize(sqlQuery string) string {
	sqlQuery = strings.TrimSpace(sqlQuery)
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}
	return sqlQuery
}

// IsReadOnly reports whether the normalized statement begins with SELECT
// or WITH, case-insensitively.
func IsReadOnly(sqlQuery string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(sqlQuery))
	return strings.HasPrefix(normalized, "SELECT") || strings.HasPrefix(normalized, "WITH")
}

// FindForbiddenKeyword scans the statement for deny-listed keywords
// appearing as standalone tokens (delimited by non-identifier runes) and
// returns the first match, or "" when clean. Identifiers that merely
// contain a keyword, like created_at, do not match.
func FindForbiddenKeyword(sqlQuery string) string {
	upper := strings.ToUpper(sqlQuery)
	for _, keyword := range denyList {
		if containsToken(upper, keyword) {
			return keyword
		}
	}
	return ""
}

// CheckReadOnly runs the full gate: single statement, SELECT/WITH prefix,
// no deny-listed keywords. Returns the normalized statement on success.
func CheckReadOnly(sqlQuery string) (string, error) {
	normalized := Normalize(sqlQuery)
	if hasSemicolonOutsideStrings(normalized) {
		return "", ErrMultipleStatements
	}
	if !IsReadOnly(normalized) {
		return "", ErrNotReadOnly
	}
	if kw := FindForbiddenKeyword(normalized); kw != "" {
		return "", fmt.Errorf("%w: %s", ErrForbiddenKeyword, kw)
	}
	return normalized, nil
}

// containsToken reports whether token occurs in s delimited by
// non-identifier characters. Both inputs must already be upper-cased.
func containsToken(s, token string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], token)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(token)
		if (idx == 0 || !isIdentRune(rune(s[idx-1]))) &&
			(end == len(s) || !isIdentRune(rune(s[end]))) {
			return true
		}
		start = idx + 1
	}
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9')
}

// hasSemicolonOutsideStrings returns true if the SQL contains any
// semicolon outside of string literals or quoted identifiers.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// SQL standard doubled quote ('') exits and immediately
			// re-enters, which keeps us in the string.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}
