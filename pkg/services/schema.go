package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/crypto"
	"github.com/lumina-bi/lumina-engine/pkg/logging"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
)

// SchemaService resolves a data source's schema, serving the cached
// snapshot when one exists and refreshing it from the live database
// otherwise.
type SchemaService interface {
	// GetSchema returns the schema for ds. With forceRefresh the cache
	// is bypassed. A corrupt cache blob counts as a miss, never an
	// error. Introspection failures come back as ErrSchemaUnavailable.
	GetSchema(ctx context.Context, ds *models.DataSource, forceRefresh bool) (*models.Schema, error)

	// Invalidate clears the cached snapshot so the next GetSchema hits
	// the live database.
	Invalidate(ctx context.Context, ds *models.DataSource) error
}

type schemaService struct {
	repo      repositories.DataSourceRepository
	encryptor *crypto.CredentialEncryptor
	factory   datasource.AdapterFactory
	logger    *zap.Logger
}

// NewSchemaService creates the schema service.
func NewSchemaService(
	repo repositories.DataSourceRepository,
	encryptor *crypto.CredentialEncryptor,
	factory datasource.AdapterFactory,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		repo:      repo,
		encryptor: encryptor,
		factory:   factory,
		logger:    logger,
	}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) GetSchema(ctx context.Context, ds *models.DataSource, forceRefresh bool) (*models.Schema, error) {
	if !forceRefresh && ds.SchemaCache != nil {
		schema, err := models.UnmarshalSchema(*ds.SchemaCache)
		if err == nil {
			return schema, nil
		}
		s.logger.Warn("corrupt schema cache, refreshing",
			zap.String("data_source_id", ds.ID.String()),
			zap.Error(err))
	}

	adapter, err := buildAdapter(s.factory, s.encryptor, ds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSchemaUnavailable, logging.SanitizeError(err))
	}
	defer adapter.Close()

	schema, err := adapter.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSchemaUnavailable, logging.SanitizeError(err))
	}

	// Cache write is best-effort; a failure costs a re-introspection,
	// not the request.
	if blob, err := schema.Marshal(); err == nil {
		if err := s.repo.UpdateSchemaCache(ctx, ds.ID, &blob); err != nil {
			s.logger.Warn("failed to persist schema cache",
				zap.String("data_source_id", ds.ID.String()),
				zap.Error(err))
		} else {
			ds.SchemaCache = &blob
		}
	}

	s.logger.Info("schema refreshed",
		zap.String("data_source_id", ds.ID.String()),
		zap.Int("tables", len(schema.Tables)))
	return schema, nil
}

func (s *schemaService) Invalidate(ctx context.Context, ds *models.DataSource) error {
	if err := s.repo.UpdateSchemaCache(ctx, ds.ID, nil); err != nil {
		return err
	}
	ds.SchemaCache = nil
	return nil
}
