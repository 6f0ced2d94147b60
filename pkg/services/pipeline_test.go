package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

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

type mockSchemaService struct {
	GetSchemaFunc func(ctx context.Context, ds *models.DataSource, forceRefresh bool) (*models.Schema, error)

	GetSchemaCalls  int
	InvalidateCalls int
}

var _ SchemaService = (*mockSchemaService)(nil)

func (m *mockSchemaService) GetSchema(ctx context.Context, ds *models.DataSource, forceRefresh bool) (*models.Schema, error) {
	m.GetSchemaCalls++
	if m.GetSchemaFunc != nil {
		return m.GetSchemaFunc(ctx, ds, forceRefresh)
	}
	return &models.Schema{Tables: map[string]models.TableSchema{}}, nil
}

func (m *mockSchemaService) Invalidate(ctx context.Context, ds *models.DataSource) error {
	m.InvalidateCalls++
	return nil
}

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, schema *models.Schema, question string) (string, error)

	GenerateCalls int
}

var _ SQLGenerator = (*mockGenerator)(nil)

func (m *mockGenerator) Generate(ctx context.Context, schema *models.Schema, question string) (string, error) {
	m.GenerateCalls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, schema, question)
	}
	return "SELECT 1", nil
}

type pipelineFixture struct {
	dsRepo    *repositories.MockDataSourceRepository
	invRepo   *repositories.MockInvocationRepository
	schemas   *mockSchemaService
	generator *mockGenerator
	adapter   *datasource.MockAdapter
	factory   *datasource.MockAdapterFactory
	pipeline  QueryPipeline

	userID uuid.UUID
	orgID  uuid.UUID
	dsID   uuid.UUID
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	encryptor, err := crypto.NewCredentialEncryptor("test-key")
	require.NoError(t, err)

	f := &pipelineFixture{
		dsRepo:    &repositories.MockDataSourceRepository{},
		invRepo:   &repositories.MockInvocationRepository{},
		schemas:   &mockSchemaService{},
		generator: &mockGenerator{},
		adapter:   &datasource.MockAdapter{},
		userID:    uuid.New(),
		orgID:     uuid.New(),
		dsID:      uuid.New(),
	}
	f.factory = &datasource.MockAdapterFactory{
		NewAdapterFunc: func(kind string, config map[string]any) (datasource.Adapter, error) {
			return f.adapter, nil
		},
	}
	f.pipeline = NewQueryPipeline(
		f.dsRepo, f.invRepo, f.schemas, f.generator,
		encryptor, f.factory,
		PipelineOptions{ExecutionTimeout: 30 * time.Second, MaxResponseRows: 500},
		zap.NewNop(),
	)
	return f
}

func (f *pipelineFixture) request(question string) *PipelineRequest {
	return &PipelineRequest{
		UserID:         f.userID,
		OrganizationID: f.orgID,
		DataSourceID:   f.dsID,
		Question:       question,
		Persist:        true,
	}
}

func TestPipelineSuccess(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.GenerateFunc = func(ctx context.Context, schema *models.Schema, question string) (string, error) {
		return "SELECT id, name FROM users LIMIT 1000", nil
	}
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		return &datasource.QueryRows{
			Columns: []string{"id", "name"},
			Rows: []map[string]any{
				{"id": int64(1), "name": "ada"},
				{"id": int64(2), "name": "grace"},
			},
		}, nil
	}

	result, err := f.pipeline.Run(context.Background(), f.request("who are the users"))
	require.NoError(t, err)

	assert.Equal(t, "who are the users", result.Question)
	assert.Equal(t, "SELECT id, name FROM users LIMIT 1000", result.GeneratedSQL)
	assert.Equal(t, 2, result.Result.TotalRowCount)
	assert.False(t, result.Result.Truncated)

	require.Equal(t, 1, f.invRepo.CreateCalls)
	recorded := f.invRepo.Created[0]
	assert.Equal(t, "who are the users", recorded.NaturalLanguageQuery)
	require.NotNil(t, recorded.GeneratedSQL)
	assert.Nil(t, recorded.ErrorMessage)
	require.NotNil(t, recorded.ResultRowCount)
	assert.Equal(t, 2, *recorded.ResultRowCount)
	assert.Equal(t, f.userID, recorded.UserID)

	require.NotNil(t, result.InvocationID)
	assert.Equal(t, recorded.ID, *result.InvocationID)
}

func TestPipelineWithoutPersistLeavesNoTrace(t *testing.T) {
	f := newPipelineFixture(t)
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		return &datasource.QueryRows{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}}}, nil
	}

	req := f.request("ad hoc exploration")
	req.Persist = false

	result, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, result.InvocationID)
	assert.Equal(t, 0, f.invRepo.CreateCalls)
}

func TestPipelineWithoutPersistSkipsFailureRecords(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.GenerateFunc = func(ctx context.Context, schema *models.Schema, question string) (string, error) {
		return "", fmt.Errorf("%w: rate limited", apperrors.ErrGenerationFailed)
	}

	req := f.request("broken")
	req.Persist = false

	_, err := f.pipeline.Run(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
	assert.Equal(t, 0, f.invRepo.CreateCalls)
}

func TestPipelineLabelRecorded(t *testing.T) {
	f := newPipelineFixture(t)
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		return &datasource.QueryRows{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}}}, nil
	}

	label := "weekly revenue"
	req := f.request("revenue by week")
	req.Label = &label

	_, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 1, f.invRepo.CreateCalls)
	require.NotNil(t, f.invRepo.Created[0].Label)
	assert.Equal(t, "weekly revenue", *f.invRepo.Created[0].Label)
}

func TestPipelineNotFound(t *testing.T) {
	f := newPipelineFixture(t)
	f.dsRepo.GetByIDFunc = func(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error) {
		return nil, apperrors.ErrNotFound
	}

	_, err := f.pipeline.Run(context.Background(), f.request("anything"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 0, f.schemas.GetSchemaCalls)
	assert.Equal(t, 0, f.invRepo.CreateCalls)
}

func TestPipelineInactiveStopsBeforeAnyWork(t *testing.T) {
	f := newPipelineFixture(t)
	f.dsRepo.GetByIDFunc = func(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error) {
		return &models.DataSource{ID: id, OrganizationID: orgID, IsActive: false}, nil
	}

	_, err := f.pipeline.Run(context.Background(), f.request("anything"))
	assert.ErrorIs(t, err, apperrors.ErrInactive)

	// no schema work, no model call, no execution, no history record
	assert.Equal(t, 0, f.schemas.GetSchemaCalls)
	assert.Equal(t, 0, f.generator.GenerateCalls)
	assert.Equal(t, 0, f.factory.NewAdapterCalls)
	assert.Equal(t, 0, f.invRepo.CreateCalls)
}

func TestPipelineSchemaFailureNotRecorded(t *testing.T) {
	f := newPipelineFixture(t)
	f.schemas.GetSchemaFunc = func(ctx context.Context, ds *models.DataSource, forceRefresh bool) (*models.Schema, error) {
		return nil, fmt.Errorf("%w: connect refused", apperrors.ErrSchemaUnavailable)
	}

	_, err := f.pipeline.Run(context.Background(), f.request("anything"))
	assert.ErrorIs(t, err, apperrors.ErrSchemaUnavailable)
	assert.Equal(t, 0, f.invRepo.CreateCalls)
}

func TestPipelineGenerationFailureRecordedWithoutSQL(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.GenerateFunc = func(ctx context.Context, schema *models.Schema, question string) (string, error) {
		return "", fmt.Errorf("%w: rate limited", apperrors.ErrGenerationFailed)
	}

	_, err := f.pipeline.Run(context.Background(), f.request("broken"))
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)

	require.Equal(t, 1, f.invRepo.CreateCalls)
	recorded := f.invRepo.Created[0]
	assert.Nil(t, recorded.GeneratedSQL)
	require.NotNil(t, recorded.ErrorMessage)
	assert.Equal(t, 0, f.adapter.ExecuteQueryCalls)
}

func TestPipelineExecutionFailureRecordedWithSQL(t *testing.T) {
	f := newPipelineFixture(t)
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		return nil, errors.New("relation does not exist")
	}

	_, err := f.pipeline.Run(context.Background(), f.request("bad"))
	assert.ErrorIs(t, err, apperrors.ErrExecutionFailed)

	require.Equal(t, 1, f.invRepo.CreateCalls)
	recorded := f.invRepo.Created[0]
	require.NotNil(t, recorded.GeneratedSQL)
	require.NotNil(t, recorded.ErrorMessage)
	assert.Nil(t, recorded.ResultRowCount)
}

func TestPipelineTimeoutPassesThrough(t *testing.T) {
	f := newPipelineFixture(t)
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		return nil, apperrors.ErrQueryTimeout
	}

	_, err := f.pipeline.Run(context.Background(), f.request("slow"))
	assert.ErrorIs(t, err, apperrors.ErrQueryTimeout)
	require.Equal(t, 1, f.invRepo.CreateCalls)
}

func TestPipelineTruncation(t *testing.T) {
	f := newPipelineFixture(t)
	f.adapter.ExecuteQueryFunc = func(ctx context.Context, sqlQuery string, timeout time.Duration) (*datasource.QueryRows, error) {
		rows := make([]map[string]any, 1200)
		for i := range rows {
			rows[i] = map[string]any{"n": i}
		}
		return &datasource.QueryRows{Columns: []string{"n"}, Rows: rows}, nil
	}

	result, err := f.pipeline.Run(context.Background(), f.request("all the rows"))
	require.NoError(t, err)

	assert.Len(t, result.Result.Rows, 500)
	assert.Equal(t, 1200, result.Result.TotalRowCount)
	assert.True(t, result.Result.Truncated)

	// history records the pre-truncation count
	recorded := f.invRepo.Created[0]
	require.NotNil(t, recorded.ResultRowCount)
	assert.Equal(t, 1200, *recorded.ResultRowCount)
}

func TestJSONSafeValue(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	assert.Nil(t, jsonSafeValue(nil))
	assert.Equal(t, int64(7), jsonSafeValue(int64(7)))
	assert.Equal(t, 2.5, jsonSafeValue(2.5))
	assert.Equal(t, true, jsonSafeValue(true))
	assert.Equal(t, "x", jsonSafeValue("x"))
	assert.Equal(t, "2025-03-14T09:26:53Z", jsonSafeValue(ts))
	assert.Equal(t, "raw", jsonSafeValue([]byte("raw")))

	id := uuid.MustParse("9f36a4bc-0fbc-4b37-9859-6ccdd4e86a2f")
	assert.Equal(t, "9f36a4bc-0fbc-4b37-9859-6ccdd4e86a2f", jsonSafeValue(id))
}
