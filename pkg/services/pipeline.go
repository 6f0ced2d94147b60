package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/crypto"
	"github.com/lumina-bi/lumina-engine/pkg/logging"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
)

// PipelineOptions carries the pipeline tunables.
type PipelineOptions struct {
	// ExecutionTimeout bounds each query's wall-clock time.
	ExecutionTimeout time.Duration

	// MaxResponseRows caps how many rows a response carries. The full
	// row count is still reported.
	MaxResponseRows int
}

// PipelineRequest describes one natural language query run.
type PipelineRequest struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	DataSourceID   uuid.UUID
	Question       string

	// Persist controls whether the attempt is recorded in history.
	// Ad-hoc runs set it false and leave no trace.
	Persist bool

	// Label is attached to the history record when persisting.
	Label *string
}

// PipelineResult is the successful outcome of one pipeline run.
// InvocationID is nil when the run was not persisted.
type PipelineResult struct {
	InvocationID    *uuid.UUID          `json:"invocation_id,omitempty"`
	Question        string              `json:"question"`
	GeneratedSQL    string              `json:"generated_sql"`
	Result          *models.QueryResult `json:"result"`
	ExecutionTimeMs float64             `json:"execution_time_ms"`
}

// QueryPipeline orchestrates one natural language query end to end:
// resolve the data source, obtain its schema, generate SQL, execute it
// and shape the rows. When persistence is requested, every attempt that
// gets past schema resolution is recorded in history, including
// failures.
type QueryPipeline interface {
	Run(ctx context.Context, req *PipelineRequest) (*PipelineResult, error)
}

type queryPipeline struct {
	dsRepo    repositories.DataSourceRepository
	invRepo   repositories.InvocationRepository
	schemas   SchemaService
	generator SQLGenerator
	encryptor *crypto.CredentialEncryptor
	factory   datasource.AdapterFactory
	opts      PipelineOptions
	logger    *zap.Logger
}

// NewQueryPipeline creates the pipeline orchestrator.
func NewQueryPipeline(
	dsRepo repositories.DataSourceRepository,
	invRepo repositories.InvocationRepository,
	schemas SchemaService,
	generator SQLGenerator,
	encryptor *crypto.CredentialEncryptor,
	factory datasource.AdapterFactory,
	opts PipelineOptions,
	logger *zap.Logger,
) QueryPipeline {
	return &queryPipeline{
		dsRepo:    dsRepo,
		invRepo:   invRepo,
		schemas:   schemas,
		generator: generator,
		encryptor: encryptor,
		factory:   factory,
		opts:      opts,
		logger:    logger,
	}
}

var _ QueryPipeline = (*queryPipeline)(nil)

func (p *queryPipeline) Run(ctx context.Context, req *PipelineRequest) (*PipelineResult, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is required")
	}

	// Resolution and schema failures happen before anything worth
	// recording; history starts at the generation stage.
	ds, err := p.dsRepo.GetByID(ctx, req.OrganizationID, req.DataSourceID)
	if err != nil {
		return nil, err
	}
	if !ds.IsActive {
		return nil, apperrors.ErrInactive
	}

	schema, err := p.schemas.GetSchema(ctx, ds, false)
	if err != nil {
		return nil, err
	}

	generated, err := p.generator.Generate(ctx, schema, req.Question)
	if err != nil {
		p.recordFailure(ctx, req, nil, err)
		return nil, err
	}

	adapter, err := buildAdapter(p.factory, p.encryptor, ds)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", apperrors.ErrExecutionFailed, logging.SanitizeError(err))
		p.recordFailure(ctx, req, &generated, wrapped)
		return nil, wrapped
	}
	defer adapter.Close()

	start := time.Now()
	rows, err := adapter.ExecuteQuery(ctx, generated, p.opts.ExecutionTimeout)
	executionMs := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		if !errors.Is(err, apperrors.ErrQueryTimeout) {
			err = fmt.Errorf("%w: %s", apperrors.ErrExecutionFailed, logging.SanitizeError(err))
		}
		p.recordFailure(ctx, req, &generated, err)
		return nil, err
	}

	result := shapeResult(rows, p.opts.MaxResponseRows)

	var invocationID *uuid.UUID
	if req.Persist {
		invocation := &models.QueryInvocation{
			NaturalLanguageQuery: req.Question,
			GeneratedSQL:         &generated,
			ExecutionTimeMs:      &executionMs,
			ResultRowCount:       &result.TotalRowCount,
			Label:                req.Label,
			UserID:               req.UserID,
			DataSourceID:         req.DataSourceID,
		}
		if err := p.invRepo.Create(ctx, invocation); err != nil {
			p.logger.Warn("failed to record invocation", zap.Error(err))
		} else {
			invocationID = &invocation.ID
		}
	}

	p.logger.Info("query completed",
		zap.String("data_source_id", req.DataSourceID.String()),
		zap.Float64("execution_ms", executionMs),
		zap.Int("rows", result.TotalRowCount))

	return &PipelineResult{
		InvocationID:    invocationID,
		Question:        req.Question,
		GeneratedSQL:    generated,
		Result:          result,
		ExecutionTimeMs: executionMs,
	}, nil
}

// recordFailure writes a history record for a failed attempt, when the
// caller asked for persistence. Best effort; the pipeline error is what
// the caller sees either way.
func (p *queryPipeline) recordFailure(ctx context.Context, req *PipelineRequest, generatedSQL *string, cause error) {
	if !req.Persist {
		return
	}
	message := logging.SanitizeError(cause)
	invocation := &models.QueryInvocation{
		NaturalLanguageQuery: req.Question,
		GeneratedSQL:         generatedSQL,
		ErrorMessage:         &message,
		Label:                req.Label,
		UserID:               req.UserID,
		DataSourceID:         req.DataSourceID,
	}
	if err := p.invRepo.Create(ctx, invocation); err != nil {
		p.logger.Warn("failed to record failed invocation", zap.Error(err))
	}
}

// shapeResult caps the row count and converts every value to a
// JSON-safe primitive.
func shapeResult(rows *datasource.QueryRows, maxRows int) *models.QueryResult {
	total := len(rows.Rows)
	truncated := false
	kept := rows.Rows
	if maxRows > 0 && total > maxRows {
		kept = rows.Rows[:maxRows]
		truncated = true
	}

	shaped := make([]map[string]any, len(kept))
	for i, row := range kept {
		out := make(map[string]any, len(row))
		for col, val := range row {
			out[col] = jsonSafeValue(val)
		}
		shaped[i] = out
	}

	return &models.QueryResult{
		Columns:       rows.Columns,
		Rows:          shaped,
		TotalRowCount: total,
		Truncated:     truncated,
	}
}

// jsonSafeValue narrows driver-native values to null, bool, number or
// string.
func jsonSafeValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
