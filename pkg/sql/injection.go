package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a connection parameter that failed the
// libinjection screen.
type InjectionCheckResult struct {
	Fingerprint string
	ParamName   string
}

// CheckParameterForInjection runs libinjection's SQLi detector over a
// user-supplied connection parameter (host, database name, username).
// These values end up interpolated into DSNs and introspection queries,
// so suspicious values are refused at save time. Non-string values
// cannot carry injection payloads and pass.
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
		}
	}

	return nil
}

// CheckConnectionParams screens a set of named parameters and returns
// results for each one that looks like an injection attempt.
func CheckConnectionParams(params map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range params {
		if result := CheckParameterForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
