package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumina-bi/lumina-engine/pkg/models"
)

// MockDataSourceRepository is a test double with injectable behavior
// and call counters.
type MockDataSourceRepository struct {
	CreateFunc            func(ctx context.Context, ds *models.DataSource) error
	GetByIDFunc           func(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error)
	ListFunc              func(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error)
	UpdateFunc            func(ctx context.Context, ds *models.DataSource) error
	UpdateSchemaCacheFunc func(ctx context.Context, id uuid.UUID, blob *string) error
	DeleteFunc            func(ctx context.Context, orgID, id uuid.UUID) error

	CreateCalls            int
	GetByIDCalls           int
	ListCalls              int
	UpdateCalls            int
	UpdateSchemaCacheCalls int
	DeleteCalls            int
	LastSchemaCacheBlob    *string
}

var _ DataSourceRepository = (*MockDataSourceRepository)(nil)

func (m *MockDataSourceRepository) Create(ctx context.Context, ds *models.DataSource) error {
	m.CreateCalls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ds)
	}
	return nil
}

func (m *MockDataSourceRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error) {
	m.GetByIDCalls++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, orgID, id)
	}
	return &models.DataSource{ID: id, OrganizationID: orgID, IsActive: true}, nil
}

func (m *MockDataSourceRepository) List(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error) {
	m.ListCalls++
	if m.ListFunc != nil {
		return m.ListFunc(ctx, orgID)
	}
	return []*models.DataSource{}, nil
}

func (m *MockDataSourceRepository) Update(ctx context.Context, ds *models.DataSource) error {
	m.UpdateCalls++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ds)
	}
	return nil
}

func (m *MockDataSourceRepository) UpdateSchemaCache(ctx context.Context, id uuid.UUID, blob *string) error {
	m.UpdateSchemaCacheCalls++
	m.LastSchemaCacheBlob = blob
	if m.UpdateSchemaCacheFunc != nil {
		return m.UpdateSchemaCacheFunc(ctx, id, blob)
	}
	return nil
}

func (m *MockDataSourceRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	m.DeleteCalls++
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, orgID, id)
	}
	return nil
}

// MockInvocationRepository is a test double with injectable behavior
// and call counters.
type MockInvocationRepository struct {
	CreateFunc            func(ctx context.Context, inv *models.QueryInvocation) error
	GetByIDFunc           func(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error)
	ListFunc              func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.QueryInvocation, int, error)
	UpdateAnnotationsFunc func(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error)
	DeleteFunc            func(ctx context.Context, userID, id uuid.UUID) error

	CreateCalls            int
	GetByIDCalls           int
	ListCalls              int
	UpdateAnnotationsCalls int
	DeleteCalls            int
	Created                []*models.QueryInvocation
}

var _ InvocationRepository = (*MockInvocationRepository)(nil)

func (m *MockInvocationRepository) Create(ctx context.Context, inv *models.QueryInvocation) error {
	m.CreateCalls++
	m.Created = append(m.Created, inv)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, inv)
	}
	inv.ID = uuid.New()
	return nil
}

func (m *MockInvocationRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error) {
	m.GetByIDCalls++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return &models.QueryInvocation{ID: id, UserID: userID}, nil
}

func (m *MockInvocationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.QueryInvocation, int, error) {
	m.ListCalls++
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, limit, offset)
	}
	return []*models.QueryInvocation{}, 0, nil
}

func (m *MockInvocationRepository) UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error) {
	m.UpdateAnnotationsCalls++
	if m.UpdateAnnotationsFunc != nil {
		return m.UpdateAnnotationsFunc(ctx, userID, id, label, favorite)
	}
	return &models.QueryInvocation{ID: id, UserID: userID, Label: label}, nil
}

func (m *MockInvocationRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.DeleteCalls++
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}
