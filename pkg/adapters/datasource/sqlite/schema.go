package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

const listTablesQuery = `
SELECT name
FROM sqlite_master
WHERE type = 'table'
  AND name NOT LIKE 'sqlite_%'
ORDER BY name`

// GetSchema introspects user tables with their columns, primary keys
// and approximate row counts. Row count lookups degrade per table
// instead of failing the whole introspection.
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
		columns, primaryKeys, err := a.getTableInfo(ctx, tableName)
		if err != nil {
			return nil, err
		}

		schema.Tables[tableName] = models.TableSchema{
			Columns:     columns,
			PrimaryKeys: primaryKeys,
			RowCount:    a.getRowCount(ctx, tableName),
		}
	}

	return schema, nil
}

// getTableInfo reads PRAGMA table_info, which yields columns in
// declaration order along with primary key membership.
func (a *Adapter) getTableInfo(ctx context.Context, tableName string) ([]models.ColumnSchema, []string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(tableName))
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table info of %s: %w", tableName, err)
	}
	defer rows.Close()

	var (
		columns     []models.ColumnSchema
		primaryKeys []string
	)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			defaultValue     *string
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, fmt.Errorf("failed to scan table info of %s: %w", tableName, err)
		}
		columns = append(columns, models.ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: notNull == 0,
			Default:  defaultValue,
		})
		if pk > 0 {
			primaryKeys = append(primaryKeys, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read table info of %s: %w", tableName, err)
	}
	return columns, primaryKeys, nil
}

func (a *Adapter) getRowCount(ctx context.Context, tableName string) *int64 {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(tableName))
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return nil
	}
	return &count
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
