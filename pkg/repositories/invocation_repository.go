package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/database"
	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// InvocationRepository defines data access for query history records.
// All reads are scoped to the owning user.
type InvocationRepository interface {
	// Create inserts an invocation record and fills ID and timestamps.
	Create(ctx context.Context, inv *models.QueryInvocation) error

	// GetByID retrieves an invocation owned by the user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error)

	// List returns one page of the user's invocations, newest first,
	// along with the total count across all pages.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.QueryInvocation, int, error)

	// UpdateAnnotations patches label and favorite. Nil fields are left
	// unchanged.
	UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error)

	// Delete removes an invocation owned by the user.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type invocationRepository struct {
	db *database.DB
}

// NewInvocationRepository creates a PostgreSQL-backed repository.
func NewInvocationRepository(db *database.DB) InvocationRepository {
	return &invocationRepository{db: db}
}

var _ InvocationRepository = (*invocationRepository)(nil)

const invocationColumns = `id, natural_language_query, generated_sql, execution_time_ms,
	result_row_count, error_message, is_favorite, label, user_id, data_source_id, created_at, updated_at`

func (r *invocationRepository) Create(ctx context.Context, inv *models.QueryInvocation) error {
	query := `
		INSERT INTO query_invocations (natural_language_query, generated_sql, execution_time_ms,
			result_row_count, error_message, is_favorite, label, user_id, data_source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		inv.NaturalLanguageQuery,
		inv.GeneratedSQL,
		inv.ExecutionTimeMs,
		inv.ResultRowCount,
		inv.ErrorMessage,
		inv.IsFavorite,
		inv.Label,
		inv.UserID,
		inv.DataSourceID,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invocation: %w", err)
	}
	return nil
}

func (r *invocationRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error) {
	query := `
		SELECT ` + invocationColumns + `
		FROM query_invocations
		WHERE user_id = $1 AND id = $2`

	inv, err := scanInvocation(r.db.QueryRow(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}
	return inv, nil
}

func (r *invocationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.QueryInvocation, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM query_invocations WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count invocations: %w", err)
	}

	query := `
		SELECT ` + invocationColumns + `
		FROM query_invocations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer rows.Close()

	invocations := []*models.QueryInvocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read invocations: %w", err)
	}
	return invocations, total, nil
}

func (r *invocationRepository) UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error) {
	query := `
		UPDATE query_invocations
		SET label = COALESCE($1, label),
			is_favorite = COALESCE($2, is_favorite),
			updated_at = NOW()
		WHERE user_id = $3 AND id = $4
		RETURNING ` + invocationColumns

	inv, err := scanInvocation(r.db.QueryRow(ctx, query, label, favorite, userID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update invocation: %w", err)
	}
	return inv, nil
}

func (r *invocationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM query_invocations WHERE user_id = $1 AND id = $2`,
		userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete invocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanInvocation(row pgx.Row) (*models.QueryInvocation, error) {
	var inv models.QueryInvocation
	err := row.Scan(
		&inv.ID,
		&inv.NaturalLanguageQuery,
		&inv.GeneratedSQL,
		&inv.ExecutionTimeMs,
		&inv.ResultRowCount,
		&inv.ErrorMessage,
		&inv.IsFavorite,
		&inv.Label,
		&inv.UserID,
		&inv.DataSourceID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
