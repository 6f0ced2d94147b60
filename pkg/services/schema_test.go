package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/crypto"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
)

type schemaFixture struct {
	repo    *repositories.MockDataSourceRepository
	adapter *datasource.MockAdapter
	factory *datasource.MockAdapterFactory
	service SchemaService
}

func newSchemaFixture(t *testing.T) *schemaFixture {
	t.Helper()
	encryptor, err := crypto.NewCredentialEncryptor("test-key")
	require.NoError(t, err)

	f := &schemaFixture{
		repo:    &repositories.MockDataSourceRepository{},
		adapter: &datasource.MockAdapter{},
	}
	f.factory = &datasource.MockAdapterFactory{
		NewAdapterFunc: func(kind string, config map[string]any) (datasource.Adapter, error) {
			return f.adapter, nil
		},
	}
	f.service = NewSchemaService(f.repo, encryptor, f.factory, zap.NewNop())
	return f
}

func liveSchema() *models.Schema {
	return &models.Schema{
		Tables: map[string]models.TableSchema{
			"events": {Columns: []models.ColumnSchema{{Name: "id", Type: "bigint"}}},
		},
	}
}

func TestGetSchemaServesCache(t *testing.T) {
	f := newSchemaFixture(t)

	blob, err := liveSchema().Marshal()
	require.NoError(t, err)
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres, SchemaCache: &blob}

	schema, err := f.service.GetSchema(context.Background(), ds, false)
	require.NoError(t, err)

	assert.Contains(t, schema.Tables, "events")
	// served from cache, no live introspection
	assert.Equal(t, 0, f.factory.NewAdapterCalls)
	assert.Equal(t, 0, f.adapter.GetSchemaCalls)
}

func TestGetSchemaCacheMissIntrospectsAndCaches(t *testing.T) {
	f := newSchemaFixture(t)
	f.adapter.GetSchemaFunc = func(ctx context.Context) (*models.Schema, error) {
		return liveSchema(), nil
	}
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres}

	schema, err := f.service.GetSchema(context.Background(), ds, false)
	require.NoError(t, err)

	assert.Contains(t, schema.Tables, "events")
	assert.Equal(t, 1, f.adapter.GetSchemaCalls)
	assert.Equal(t, 1, f.adapter.CloseCalls)
	assert.Equal(t, 1, f.repo.UpdateSchemaCacheCalls)
	require.NotNil(t, f.repo.LastSchemaCacheBlob)
	require.NotNil(t, ds.SchemaCache)
}

func TestGetSchemaCorruptCacheTreatedAsMiss(t *testing.T) {
	f := newSchemaFixture(t)
	f.adapter.GetSchemaFunc = func(ctx context.Context) (*models.Schema, error) {
		return liveSchema(), nil
	}
	corrupt := "{not json"
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres, SchemaCache: &corrupt}

	schema, err := f.service.GetSchema(context.Background(), ds, false)
	require.NoError(t, err)
	assert.Contains(t, schema.Tables, "events")
	assert.Equal(t, 1, f.adapter.GetSchemaCalls)
}

func TestGetSchemaForceRefreshBypassesCache(t *testing.T) {
	f := newSchemaFixture(t)
	f.adapter.GetSchemaFunc = func(ctx context.Context) (*models.Schema, error) {
		return liveSchema(), nil
	}
	blob, err := (&models.Schema{Tables: map[string]models.TableSchema{"stale": {}}}).Marshal()
	require.NoError(t, err)
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres, SchemaCache: &blob}

	schema, err := f.service.GetSchema(context.Background(), ds, true)
	require.NoError(t, err)
	assert.Contains(t, schema.Tables, "events")
	assert.NotContains(t, schema.Tables, "stale")
}

func TestGetSchemaIntrospectionFailure(t *testing.T) {
	f := newSchemaFixture(t)
	f.adapter.GetSchemaFunc = func(ctx context.Context) (*models.Schema, error) {
		return nil, errors.New("connection refused")
	}
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres}

	_, err := f.service.GetSchema(context.Background(), ds, false)
	assert.ErrorIs(t, err, apperrors.ErrSchemaUnavailable)
	assert.Equal(t, 0, f.repo.UpdateSchemaCacheCalls)
}

func TestGetSchemaCachePersistFailureStillReturnsSchema(t *testing.T) {
	f := newSchemaFixture(t)
	f.adapter.GetSchemaFunc = func(ctx context.Context) (*models.Schema, error) {
		return liveSchema(), nil
	}
	f.repo.UpdateSchemaCacheFunc = func(ctx context.Context, id uuid.UUID, blob *string) error {
		return errors.New("disk full")
	}
	ds := &models.DataSource{ID: uuid.New(), Kind: models.KindPostgres}

	schema, err := f.service.GetSchema(context.Background(), ds, false)
	require.NoError(t, err)
	assert.Contains(t, schema.Tables, "events")
}

func TestInvalidate(t *testing.T) {
	f := newSchemaFixture(t)
	blob := "{}"
	ds := &models.DataSource{ID: uuid.New(), SchemaCache: &blob}

	err := f.service.Invalidate(context.Background(), ds)
	require.NoError(t, err)
	assert.Nil(t, ds.SchemaCache)
	assert.Equal(t, 1, f.repo.UpdateSchemaCacheCalls)
	assert.Nil(t, f.repo.LastSchemaCacheBlob)
}
