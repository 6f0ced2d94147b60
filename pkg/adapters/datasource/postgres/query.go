package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	enginesql "github.com/lumina-bi/lumina-engine/pkg/sql"
)

// ExecuteQuery runs a statement under the given timeout and returns all
// rows as column-name keyed maps. The read-only gate runs before any
// network I/O. A deadline hit maps to ErrQueryTimeout.
func (a *Adapter) ExecuteQuery(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
	if _, err := enginesql.CheckReadOnly(sqlQuery); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := a.pool.Query(queryCtx, sqlQuery)
	if err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.ErrQueryTimeout
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = string(field.Name)
	}

	result := &datasource.QueryRows{
		Columns: columns,
		Rows:    []map[string]any{},
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.ErrQueryTimeout
		}
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return result, nil
}
