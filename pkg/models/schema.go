package models

import (
	"encoding/json"
	"sort"
)

// ColumnSchema describes one column of an introspected table.
type ColumnSchema struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Nullable  bool    `json:"nullable"`
	Default   *string `json:"default,omitempty"`
	MaxLength *int    `json:"max_length,omitempty"`
}

// TableSchema describes one table: columns in physical ordinal order,
// the primary-key column set, and a best-effort row count. RowCount is
// nil when counting failed for this table (introspection degrades
// per-table rather than aborting).
type TableSchema struct {
	Columns     []ColumnSchema `json:"columns"`
	PrimaryKeys []string       `json:"primary_keys"`
	RowCount    *int64         `json:"row_count"`
}

// Schema is a point-in-time snapshot of a data source's structure.
// Staleness is the caller's responsibility; refresh is always explicit.
type Schema struct {
	Tables map[string]TableSchema `json:"tables"`
}

// TableNames returns the table names in lexicographic order. Prompt
// construction depends on this ordering being stable across calls.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal serializes the schema for the data source's cache column.
func (s *Schema) Marshal() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalSchema deserializes a cache blob. A non-nil error means the
// blob is corrupt and must be treated as a cache miss by callers.
func UnmarshalSchema(blob string) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return nil, err
	}
	if s.Tables == nil {
		s.Tables = make(map[string]TableSchema)
	}
	return &s, nil
}
