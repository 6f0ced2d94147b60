package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(&Config{FilePath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	ctx := context.Background()
	_, err = adapter.db.ExecContext(ctx, `
		CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			price REAL DEFAULT 0
		)`)
	require.NoError(t, err)
	_, err = adapter.db.ExecContext(ctx,
		`INSERT INTO products (name, price) VALUES ('widget', 9.99), ('gadget', 19.99)`)
	require.NoError(t, err)

	return adapter
}

func TestFromMapSQLite(t *testing.T) {
	cfg, err := FromMap(map[string]any{"file_path": "/data/app.db"})
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db", cfg.FilePath)

	_, err = FromMap(map[string]any{})
	assert.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	adapter := newTestAdapter(t)

	ok, message, latency := adapter.TestConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "connection successful", message)
	require.NotNil(t, latency)
	assert.GreaterOrEqual(t, *latency, 0.0)
}

func TestGetSchema(t *testing.T) {
	adapter := newTestAdapter(t)

	schema, err := adapter.GetSchema(context.Background())
	require.NoError(t, err)

	table, ok := schema.Tables["products"]
	require.True(t, ok)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "id", table.Columns[0].Name)
	assert.Equal(t, "name", table.Columns[1].Name)
	assert.False(t, table.Columns[1].Nullable)
	assert.True(t, table.Columns[2].Nullable)
	assert.Equal(t, []string{"id"}, table.PrimaryKeys)
	require.NotNil(t, table.RowCount)
	assert.Equal(t, int64(2), *table.RowCount)
}

func TestExecuteQuery(t *testing.T) {
	adapter := newTestAdapter(t)

	result, err := adapter.ExecuteQuery(context.Background(),
		"SELECT name, price FROM products ORDER BY price", time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "price"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "widget", result.Rows[0]["name"])
	assert.Equal(t, 19.99, result.Rows[1]["price"])
}

func TestExecuteQueryRejectsWrites(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.ExecuteQuery(context.Background(), "DROP TABLE products", time.Second)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	// table untouched
	result, err := adapter.ExecuteQuery(context.Background(),
		"SELECT count(*) AS n FROM products", time.Second)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(2), result.Rows[0]["n"])
}
