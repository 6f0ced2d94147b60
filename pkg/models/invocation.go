package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryInvocation records one end-to-end pipeline run, successful or not.
//
// GeneratedSQL is nil when generation failed before producing text.
// Exactly one of {ExecutionTimeMs+ResultRowCount, ErrorMessage} is
// populated once the run is finalized. Label and IsFavorite remain
// editable by the owning user; everything else is immutable after
// finalization.
type QueryInvocation struct {
	ID                   uuid.UUID  `json:"id"`
	NaturalLanguageQuery string     `json:"natural_language_query"`
	GeneratedSQL         *string    `json:"generated_sql,omitempty"`
	ExecutionTimeMs      *float64   `json:"execution_time_ms,omitempty"`
	ResultRowCount       *int       `json:"result_row_count,omitempty"`
	ErrorMessage         *string    `json:"error_message,omitempty"`
	IsFavorite           bool       `json:"is_favorite"`
	Label                *string    `json:"label,omitempty"`
	UserID               uuid.UUID  `json:"user_id"`
	DataSourceID         uuid.UUID  `json:"data_source_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// QueryResult is the transient, size-bounded, JSON-safe shape of an
// execution's rows. Row values are restricted to null, bool, number and
// string; TotalRowCount is the pre-truncation count.
type QueryResult struct {
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	TotalRowCount int              `json:"row_count"`
	Truncated     bool             `json:"truncated"`
}
