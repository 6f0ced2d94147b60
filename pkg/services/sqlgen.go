package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/llm"
	"github.com/lumina-bi/lumina-engine/pkg/logging"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/prompts"
	enginesql "github.com/lumina-bi/lumina-engine/pkg/sql"
)

// SQLGenerator turns a natural language question into a validated
// read-only SQL statement.
type SQLGenerator interface {
	// Generate builds the prompts from schema and question, calls the
	// model, strips formatting artifacts and runs the read-only gate.
	Generate(ctx context.Context, schema *models.Schema, question string) (string, error)
}

// GeneratorOptions carries the generator tunables.
type GeneratorOptions struct {
	// RowLimit is the LIMIT the prompt instructs the model to apply.
	// Zero uses the prompt package default.
	RowLimit int

	// GenerationTimeout bounds the completion call. Zero leaves the
	// bound to the client's own HTTP timeout.
	GenerationTimeout time.Duration
}

type sqlGenerator struct {
	client llm.Client
	opts   GeneratorOptions
	logger *zap.Logger
}

// NewSQLGenerator creates the generator.
func NewSQLGenerator(client llm.Client, opts GeneratorOptions, logger *zap.Logger) SQLGenerator {
	return &sqlGenerator{client: client, opts: opts, logger: logger}
}

var _ SQLGenerator = (*sqlGenerator)(nil)

func (g *sqlGenerator) Generate(ctx context.Context, schema *models.Schema, question string) (string, error) {
	system := prompts.BuildSystemPrompt(schema, g.opts.RowLimit)
	user := prompts.BuildUserPrompt(question)

	if g.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.GenerationTimeout)
		defer cancel()
	}

	completion, err := g.client.Complete(ctx, system, user)
	if err != nil {
		g.logger.Warn("completion failed",
			zap.String("model", g.client.Model()),
			zap.Error(err))
		return "", fmt.Errorf("%w: %s", apperrors.ErrGenerationFailed, logging.SanitizeError(err))
	}

	candidate := stripMarkdownFences(completion)

	validated, err := enginesql.CheckReadOnly(candidate)
	if err != nil {
		g.logger.Warn("generated SQL rejected",
			zap.String("model", g.client.Model()),
			zap.String("sql", logging.SanitizeQuery(candidate)),
			zap.Error(err))
		switch {
		case errors.Is(err, enginesql.ErrNotReadOnly):
			return "", fmt.Errorf("%w: %s", apperrors.ErrNotReadOnly, err)
		case errors.Is(err, enginesql.ErrForbiddenKeyword):
			return "", fmt.Errorf("%w: %s", apperrors.ErrForbiddenOperation, err)
		default:
			return "", fmt.Errorf("%w: %s", apperrors.ErrInvalidQuery, err)
		}
	}

	return validated, nil
}

// stripMarkdownFences removes a ```sql ... ``` (or bare ```) wrapper
// the model sometimes adds despite instructions.
func stripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// drop a language tag on the opening fence
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := strings.TrimSpace(text[:idx])
			if firstLine == "sql" || firstLine == "SQL" || firstLine == "" {
				text = text[idx+1:]
			}
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	return strings.TrimSpace(text)
}
