// Package datasource defines the adapter abstraction over external
// databases. Backend packages register themselves via init().
package datasource

import (
	"context"
	"time"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// Adapter is the uniform surface the pipeline uses against an external
// database. Each implementation owns its connection and must be closed
// when done.
type Adapter interface {
	// TestConnection probes the database. It never returns an error;
	// failures come back as ok=false with a sanitized message. On
	// success latencyMs carries the round-trip time.
	TestConnection(ctx context.Context) (ok bool, message string, latencyMs *float64)

	// GetSchema introspects tables, columns, primary keys and
	// approximate row counts. Per-table detail failures degrade to
	// partial results rather than failing the whole call.
	GetSchema(ctx context.Context) (*models.Schema, error)

	// ExecuteQuery runs a read-only statement under the given timeout.
	// A deadline hit maps to apperrors.ErrQueryTimeout.
	ExecuteQuery(ctx context.Context, sqlQuery string, timeout time.Duration) (*QueryRows, error)

	// Close releases the underlying connection or pool.
	Close() error
}

// QueryRows is the raw, untruncated result of an adapter execution.
// Values are driver-native; the pipeline shapes them for transport.
type QueryRows struct {
	Columns []string
	Rows    []map[string]any
}
