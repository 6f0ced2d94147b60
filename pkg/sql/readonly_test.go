package sql

import (
	"errors"
	"testing"
)

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"simple select", "SELECT * FROM users", true},
		{"lowercase select", "select id from users", true},
		{"leading whitespace", "   \n SELECT 1", true},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"lowercase cte", "with t as (select 1) select * from t", true},
		{"insert", "INSERT INTO users VALUES (1)", false},
		{"update", "UPDATE users SET name = 'x'", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReadOnly(tt.query); got != tt.want {
				t.Errorf("IsReadOnly(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"trailing semicolon", "SELECT 1;", "SELECT 1"},
		{"semicolon and whitespace", "  SELECT 1 ; \n", "SELECT 1"},
		{"no semicolon", "SELECT 1", "SELECT 1"},
		{"only one semicolon stripped", "SELECT 1;;", "SELECT 1;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.query); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestFindForbiddenKeyword(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"clean select", "SELECT id, created_at FROM users", ""},
		{"delete", "DELETE FROM users", "DELETE"},
		{"lowercase drop", "select 1; drop table users", "DROP"},
		{"keyword inside identifier", "SELECT updated_at, creates FROM audit_log", ""},
		{"created_at is not CREATE", "SELECT created_at FROM events", ""},
		{"execute", "EXECUTE plan", "EXECUTE"},
		{"keyword in string literal still trips", "SELECT 'please DROP me'", "DROP"},
		{"cte named delete_candidates", "WITH delete_candidates AS (SELECT 1) SELECT * FROM delete_candidates", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindForbiddenKeyword(tt.query); got != tt.want {
				t.Errorf("FindForbiddenKeyword(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestCheckReadOnly(t *testing.T) {
	t.Run("accepts select with trailing semicolon", func(t *testing.T) {
		got, err := CheckReadOnly("SELECT * FROM users LIMIT 10;")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "SELECT * FROM users LIMIT 10" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("rejects non-select", func(t *testing.T) {
		_, err := CheckReadOnly("TRUNCATE users")
		if !errors.Is(err, ErrNotReadOnly) {
			t.Errorf("want ErrNotReadOnly, got %v", err)
		}
	})

	t.Run("rejects forbidden keyword", func(t *testing.T) {
		_, err := CheckReadOnly("SELECT 1 INTO outfile; DELETE FROM users")
		if !errors.Is(err, ErrMultipleStatements) {
			t.Errorf("want ErrMultipleStatements, got %v", err)
		}

		_, err = CheckReadOnly("WITH x AS (SELECT 1) SELECT * FROM x WHERE EXEC")
		if !errors.Is(err, ErrForbiddenKeyword) {
			t.Errorf("want ErrForbiddenKeyword, got %v", err)
		}
	})

	t.Run("semicolon inside string literal allowed", func(t *testing.T) {
		_, err := CheckReadOnly("SELECT 'a;b' FROM t")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("multiple statements rejected", func(t *testing.T) {
		_, err := CheckReadOnly("SELECT 1; SELECT 2")
		if !errors.Is(err, ErrMultipleStatements) {
			t.Errorf("want ErrMultipleStatements, got %v", err)
		}
	})
}
