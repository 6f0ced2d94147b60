// Package repositories contains the PostgreSQL data access layer for
// the engine's own records.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/database"
	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// DataSourceRepository defines data access for data source records.
// Passwords arrive and leave encrypted; encryption is the service
// layer's job. All reads are scoped to the owning organization.
type DataSourceRepository interface {
	// Create inserts a new data source and fills ID and timestamps.
	Create(ctx context.Context, ds *models.DataSource) error

	// GetByID retrieves a data source visible to the organization.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error)

	// List retrieves all data sources for an organization, newest first.
	List(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error)

	// Update persists the mutable fields of ds and refreshes UpdatedAt.
	Update(ctx context.Context, ds *models.DataSource) error

	// UpdateSchemaCache stores (or clears, with nil) the schema snapshot.
	UpdateSchemaCache(ctx context.Context, id uuid.UUID, blob *string) error

	// Delete removes a data source.
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type dataSourceRepository struct {
	db *database.DB
}

// NewDataSourceRepository creates a PostgreSQL-backed repository.
func NewDataSourceRepository(db *database.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

var _ DataSourceRepository = (*dataSourceRepository)(nil)

const dataSourceColumns = `id, name, description, kind, host, port, database_name, username,
	encrypted_password, file_path, is_active, schema_cache, organization_id, created_at, updated_at`

func (r *dataSourceRepository) Create(ctx context.Context, ds *models.DataSource) error {
	query := `
		INSERT INTO data_sources (name, description, kind, host, port, database_name, username,
			encrypted_password, file_path, is_active, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		ds.Name,
		ds.Description,
		ds.Kind,
		ds.Host,
		ds.Port,
		ds.Database,
		ds.Username,
		ds.EncryptedPassword,
		ds.FilePath,
		ds.IsActive,
		ds.OrganizationID,
	).Scan(&ds.ID, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error) {
	query := `
		SELECT ` + dataSourceColumns + `
		FROM data_sources
		WHERE organization_id = $1 AND id = $2`

	ds, err := scanDataSource(r.db.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return ds, nil
}

func (r *dataSourceRepository) List(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error) {
	query := `
		SELECT ` + dataSourceColumns + `
		FROM data_sources
		WHERE organization_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	sources := []*models.DataSource{}
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data sources: %w", err)
	}
	return sources, nil
}

func (r *dataSourceRepository) Update(ctx context.Context, ds *models.DataSource) error {
	query := `
		UPDATE data_sources
		SET name = $1, description = $2, host = $3, port = $4, database_name = $5,
			username = $6, encrypted_password = $7, file_path = $8, is_active = $9,
			schema_cache = $10, updated_at = NOW()
		WHERE organization_id = $11 AND id = $12
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		ds.Name,
		ds.Description,
		ds.Host,
		ds.Port,
		ds.Database,
		ds.Username,
		ds.EncryptedPassword,
		ds.FilePath,
		ds.IsActive,
		ds.SchemaCache,
		ds.OrganizationID,
		ds.ID,
	).Scan(&ds.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) UpdateSchemaCache(ctx context.Context, id uuid.UUID, blob *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE data_sources SET schema_cache = $1, updated_at = NOW() WHERE id = $2`,
		blob, id)
	if err != nil {
		return fmt.Errorf("failed to update schema cache: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *dataSourceRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM data_sources WHERE organization_id = $1 AND id = $2`,
		orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanDataSource(row pgx.Row) (*models.DataSource, error) {
	var ds models.DataSource
	err := row.Scan(
		&ds.ID,
		&ds.Name,
		&ds.Description,
		&ds.Kind,
		&ds.Host,
		&ds.Port,
		&ds.Database,
		&ds.Username,
		&ds.EncryptedPassword,
		&ds.FilePath,
		&ds.IsActive,
		&ds.SchemaCache,
		&ds.OrganizationID,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
