// Package apperrors defines the sentinel errors shared across the engine.
// Services return these (possibly wrapped); the transport layer maps them
// to status codes with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist, or is not
	// visible to the requesting principal. Cross-principal lookups return
	// this rather than a distinct error to avoid existence leakage.
	ErrNotFound = errors.New("not found")

	// ErrInactive indicates the entity exists but has been disabled.
	ErrInactive = errors.New("data source is inactive")

	// ErrConflict indicates a uniqueness violation (e.g. duplicate name).
	ErrConflict = errors.New("conflict")

	// ErrSchemaUnavailable indicates schema introspection failed.
	ErrSchemaUnavailable = errors.New("schema unavailable")

	// ErrGenerationFailed indicates the upstream text-generation call failed.
	ErrGenerationFailed = errors.New("SQL generation failed")

	// ErrNotReadOnly indicates a statement is not a SELECT/WITH query.
	ErrNotReadOnly = errors.New("only read-only queries are supported")

	// ErrForbiddenOperation indicates a statement contains a deny-listed
	// mutating keyword.
	ErrForbiddenOperation = errors.New("query contains a forbidden operation")

	// ErrInvalidQuery indicates a statement was rejected by the adapter's
	// read-only gate before execution.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrQueryTimeout indicates execution exceeded its wall-clock bound.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrExecutionFailed indicates the backend reported a query error.
	ErrExecutionFailed = errors.New("query execution failed")

	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid credential without sufficient rights.
	ErrForbidden = errors.New("forbidden")

	// ErrUnsupportedKind indicates a data source kind with no registered adapter.
	ErrUnsupportedKind = errors.New("unsupported data source kind")
)
