// Package mysql implements the MySQL data source adapter.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/lumina-bi/lumina-engine/pkg/logging"
)

// Adapter provides MySQL connectivity.
type Adapter struct {
	config *Config
	db     *sql.DB
}

func buildDSN(cfg *Config) string {
	dsnCfg := gomysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	return dsnCfg.FormatDSN()
}

// NewAdapter creates a MySQL adapter with a small lazy pool.
// No connection is established until the adapter is first used.
func NewAdapter(cfg *Config) (*Adapter, error) {
	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid mysql config: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Adapter{config: cfg, db: db}, nil
}

// newAdapterWithDB wires a pre-opened handle, for tests.
func newAdapterWithDB(cfg *Config, db *sql.DB) *Adapter {
	return &Adapter{config: cfg, db: db}
}

// TestConnection probes connectivity and database access. Failures come
// back as a sanitized message instead of an error.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string, *float64) {
	start := time.Now()

	if err := a.db.PingContext(ctx); err != nil {
		return false, "ping failed: " + logging.SanitizeError(err), nil
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false, "test query failed: " + logging.SanitizeError(err), nil
	}

	latency := float64(time.Since(start).Microseconds()) / 1000.0
	return true, "connection successful", &latency
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
