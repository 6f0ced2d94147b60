package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

const listTablesQuery = `
SELECT TABLE_NAME
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE()
  AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

const listColumnsQuery = `
SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, CHARACTER_MAXIMUM_LENGTH
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE()
  AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

const listPrimaryKeysQuery = `
SELECT COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE()
  AND TABLE_NAME = ?
  AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY ORDINAL_POSITION`

// GetSchema introspects base tables in the connected database with
// their columns, primary keys and approximate row counts. Primary key
// and row count lookups degrade per table instead of failing the whole
// introspection.
func (a *Adapter) GetSchema(ctx context.Context) (*models.Schema, error) {
	rows, err := a.db.QueryContext(ctx, listTablesQuery)
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
	rows, err := a.db.QueryContext(ctx, listColumnsQuery, tableName)
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

func (a *Adapter) getPrimaryKeys(ctx context.Context, tableName string) []string {
	rows, err := a.db.QueryContext(ctx, listPrimaryKeysQuery, tableName)
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

func (a *Adapter) getRowCount(ctx context.Context, tableName string) *int64 {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(tableName))
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return nil
	}
	return &count
}

// quoteIdentifier backtick-quotes an identifier, escaping embedded
// backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
