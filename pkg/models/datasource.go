package models

import (
	"time"

	"github.com/google/uuid"
)

// DataSourceKind enumerates the supported backend families.
type DataSourceKind string

const (
	KindPostgres DataSourceKind = "postgres"
	KindMySQL    DataSourceKind = "mysql"
	KindSQLite   DataSourceKind = "sqlite"
	KindCSV      DataSourceKind = "csv"
)

// Valid reports whether k is one of the enumerated kinds.
func (k DataSourceKind) Valid() bool {
	switch k {
	case KindPostgres, KindMySQL, KindSQLite, KindCSV:
		return true
	}
	return false
}

// DataSource is an externally reachable database the engine can
// introspect and query on behalf of an organization.
//
// EncryptedPassword holds the AES-GCM ciphertext of the credential; the
// plaintext never touches the database or any API response. SchemaCache
// holds the serialized Schema snapshot, nil until first introspection.
type DataSource struct {
	ID                uuid.UUID      `json:"id"`
	Name              string         `json:"name"`
	Description       *string        `json:"description,omitempty"`
	Kind              DataSourceKind `json:"kind"`
	Host              *string        `json:"host,omitempty"`
	Port              *int           `json:"port,omitempty"`
	Database          *string        `json:"database,omitempty"`
	Username          *string        `json:"username,omitempty"`
	EncryptedPassword *string        `json:"-"`
	FilePath          *string        `json:"file_path,omitempty"`
	IsActive          bool           `json:"is_active"`
	SchemaCache       *string        `json:"-"`
	OrganizationID    uuid.UUID      `json:"organization_id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
