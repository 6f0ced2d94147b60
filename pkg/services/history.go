package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// HistoryPage is one page of a user's query history.
type HistoryPage struct {
	Invocations []*models.QueryInvocation `json:"invocations"`
	Total       int                       `json:"total"`
	Page        int                       `json:"page"`
	PerPage     int                       `json:"per_page"`
}

// HistoryService exposes a user's query history. Every operation is
// scoped to the requesting user; other users' records are invisible.
type HistoryService interface {
	List(ctx context.Context, userID uuid.UUID, page, perPage int) (*HistoryPage, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error)

	// UpdateAnnotations patches label and favorite, the only mutable
	// fields of a finalized invocation. Nil fields are left unchanged.
	UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error)

	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type historyService struct {
	repo   repositories.InvocationRepository
	logger *zap.Logger
}

// NewHistoryService creates the history service.
func NewHistoryService(repo repositories.InvocationRepository, logger *zap.Logger) HistoryService {
	return &historyService{repo: repo, logger: logger}
}

var _ HistoryService = (*historyService)(nil)

func (s *historyService) List(ctx context.Context, userID uuid.UUID, page, perPage int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	invocations, total, err := s.repo.List(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Invocations: invocations,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
	}, nil
}

func (s *historyService) Get(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *historyService) UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error) {
	return s.repo.UpdateAnnotations(ctx, userID, id, label, favorite)
}

func (s *historyService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}
