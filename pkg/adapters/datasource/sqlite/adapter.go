// Package sqlite implements the SQLite data source adapter, used for
// local file databases.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumina-bi/lumina-engine/pkg/logging"
)

// Config contains SQLite-specific connection options.
type Config struct {
	FilePath string
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	filePath, ok := config["file_path"].(string)
	if !ok || filePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}
	return &Config{FilePath: filePath}, nil
}

// Adapter provides SQLite connectivity over a local file.
type Adapter struct {
	config *Config
	db     *sql.DB
}

// NewAdapter opens a handle on the database file. The file is not
// touched until the adapter is first used.
func NewAdapter(cfg *Config) (*Adapter, error) {
	db, err := sql.Open("sqlite", cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}
	// a file database serializes writers anyway
	db.SetMaxOpenConns(1)

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection verifies the file opens and answers a trivial query.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string, *float64) {
	start := time.Now()

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false, "test query failed: " + logging.SanitizeError(err), nil
	}

	latency := float64(time.Since(start).Microseconds()) / 1000.0
	return true, "connection successful", &latency
}

// Close releases the file handle.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
