package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

const listTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public'
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

const listColumnsQuery = `
SELECT column_name, data_type, is_nullable, column_default, character_maximum_length
FROM information_schema.columns
WHERE table_schema = 'public'
  AND table_name = $1
ORDER BY ordinal_position`

const listPrimaryKeysQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::regclass
  AND i.indisprimary
ORDER BY a.attnum`

// GetSchema introspects the public schema: base tables with their
// columns, primary keys and approximate row counts. Primary key and
// row count lookups degrade per table (empty keys, nil count) instead
// of failing the whole introspection.
func (a *Adapter) GetSchema(ctx context.Context) (*models.Schema, error) {
	rows, err := a.pool.Query(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}

	schema := &models.Schema{Tables: make(map[string]models.TableSchema, len(tableNames))}
	for _, tableName := range tableNames {
		columns, err := a.getColumns(ctx, tableName)
		if err != nil {
			return nil, err
		}

		schema.Tables[tableName] = models.TableSchema{
			Columns:     columns,
			PrimaryKeys: a.getPrimaryKeys(ctx, tableName),
			RowCount:    a.getRowCount(ctx, tableName),
		}
	}

	return schema, nil
}

func (a *Adapter) getColumns(ctx context.Context, tableName string) ([]models.ColumnSchema, error) {
	rows, err := a.pool.Query(ctx, listColumnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []models.ColumnSchema
	for rows.Next() {
		var (
			name, dataType, isNullable string
			columnDefault              *string
			maxLength                  *int
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &columnDefault, &maxLength); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", tableName, err)
		}
		columns = append(columns, models.ColumnSchema{
			Name:      name,
			Type:      dataType,
			Nullable:  isNullable == "YES",
			Default:   columnDefault,
			MaxLength: maxLength,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", tableName, err)
	}
	return columns, nil
}

// getPrimaryKeys returns the primary key columns, or nil when the
// lookup fails.
func (a *Adapter) getPrimaryKeys(ctx context.Context, tableName string) []string {
	rows, err := a.pool.Query(ctx, listPrimaryKeysQuery, quoteIdentifier(tableName))
	if err != nil {
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil
		}
		keys = append(keys, name)
	}
	if rows.Err() != nil {
		return nil
	}
	return keys
}

// getRowCount returns an exact row count, or nil when counting fails
// (locked tables, permission gaps).
func (a *Adapter) getRowCount(ctx context.Context, tableName string) *int64 {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(tableName))
	if err := a.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return nil
	}
	return &count
}

// quoteIdentifier double-quotes an identifier, escaping embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
