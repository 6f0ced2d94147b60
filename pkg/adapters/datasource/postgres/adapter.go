// Package postgres implements the PostgreSQL data source adapter.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-bi/lumina-engine/pkg/logging"
)

// Adapter provides PostgreSQL connectivity.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields must be URL-escaped so special characters in
// passwords (@, /, #, ?) don't break URL parsing.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// NewAdapter creates a PostgreSQL adapter with a small lazy pool.
// No connection is established until the adapter is first used.
func NewAdapter(cfg *Config) (*Adapter, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	return &Adapter{config: cfg, pool: pool}, nil
}

// TestConnection probes connectivity, database access and that we are
// on the configured database. Failures come back as a sanitized message
// instead of an error.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string, *float64) {
	start := time.Now()

	if err := a.pool.Ping(ctx); err != nil {
		return false, "ping failed: " + logging.SanitizeError(err), nil
	}

	var result int
	if err := a.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return false, "test query failed: " + logging.SanitizeError(err), nil
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return false, "failed to get current database name: " + logging.SanitizeError(err), nil
	}
	if currentDB != a.config.Database {
		return false, fmt.Sprintf("connected to wrong database: expected %q but connected to %q",
			a.config.Database, currentDB), nil
	}

	latency := float64(time.Since(start).Microseconds()) / 1000.0
	return true, "connection successful", &latency
}

// Close releases the pool.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}
