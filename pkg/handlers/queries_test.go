package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/auth"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/services"
)

type mockPipeline struct {
	RunFunc func(ctx context.Context, req *services.PipelineRequest) (*services.PipelineResult, error)
}

func (m *mockPipeline) Run(ctx context.Context, req *services.PipelineRequest) (*services.PipelineResult, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return &services.PipelineResult{GeneratedSQL: "SELECT 1"}, nil
}

type mockHistory struct {
	ListFunc              func(ctx context.Context, userID uuid.UUID, page, perPage int) (*services.HistoryPage, error)
	GetFunc               func(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error)
	UpdateAnnotationsFunc func(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error)
	DeleteFunc            func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockHistory) List(ctx context.Context, userID uuid.UUID, page, perPage int) (*services.HistoryPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, page, perPage)
	}
	return &services.HistoryPage{Invocations: []*models.QueryInvocation{}, Page: 1, PerPage: 20}, nil
}

func (m *mockHistory) Get(ctx context.Context, userID, id uuid.UUID) (*models.QueryInvocation, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, id)
	}
	return &models.QueryInvocation{ID: id, UserID: userID}, nil
}

func (m *mockHistory) UpdateAnnotations(ctx context.Context, userID, id uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error) {
	if m.UpdateAnnotationsFunc != nil {
		return m.UpdateAnnotationsFunc(ctx, userID, id, label, favorite)
	}
	return &models.QueryInvocation{ID: id, UserID: userID, Label: label}, nil
}

func (m *mockHistory) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

func authedRequest(method, target string, body any, principal *auth.Principal) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(auth.WithPrincipal(req.Context(), principal))
}

func newQueryMux(pipeline services.QueryPipeline, history services.HistoryService) *http.ServeMux {
	mux := http.NewServeMux()
	NewQueryHandler(pipeline, history, zap.NewNop()).Register(mux)
	return mux
}

func TestRunQuery(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New(), OrganizationID: uuid.New()}
	dsID := uuid.New()

	t.Run("success", func(t *testing.T) {
		pipeline := &mockPipeline{
			RunFunc: func(ctx context.Context, req *services.PipelineRequest) (*services.PipelineResult, error) {
				assert.Equal(t, principal.UserID, req.UserID)
				assert.Equal(t, dsID, req.DataSourceID)
				assert.True(t, req.Persist)
				return &services.PipelineResult{
					GeneratedSQL: "SELECT 1",
					Result:       &models.QueryResult{Columns: []string{"?column?"}, Rows: []map[string]any{{"?column?": 1}}, TotalRowCount: 1},
				}, nil
			},
		}
		mux := newQueryMux(pipeline, &mockHistory{})

		req := authedRequest(http.MethodPost, "/api/queries",
			map[string]any{"data_source_id": dsID, "question": "one"}, principal)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var result services.PipelineResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
		assert.Equal(t, "SELECT 1", result.GeneratedSQL)
	})

	t.Run("persist and label pass through", func(t *testing.T) {
		var got *services.PipelineRequest
		pipeline := &mockPipeline{
			RunFunc: func(ctx context.Context, req *services.PipelineRequest) (*services.PipelineResult, error) {
				got = req
				return &services.PipelineResult{GeneratedSQL: "SELECT 1"}, nil
			},
		}
		mux := newQueryMux(pipeline, &mockHistory{})

		req := authedRequest(http.MethodPost, "/api/queries",
			map[string]any{"data_source_id": dsID, "question": "one", "persist": false, "label": "scratch"}, principal)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.False(t, got.Persist)
		require.NotNil(t, got.Label)
		assert.Equal(t, "scratch", *got.Label)
	})

	t.Run("missing fields", func(t *testing.T) {
		mux := newQueryMux(&mockPipeline{}, &mockHistory{})

		req := authedRequest(http.MethodPost, "/api/queries", map[string]any{"question": "x"}, principal)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pipeline errors map to status codes", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{apperrors.ErrNotFound, http.StatusNotFound},
			{apperrors.ErrInactive, http.StatusBadRequest},
			{fmt.Errorf("%w: boom", apperrors.ErrSchemaUnavailable), http.StatusBadGateway},
			{fmt.Errorf("%w: rate limited", apperrors.ErrGenerationFailed), http.StatusBadGateway},
			{apperrors.ErrQueryTimeout, http.StatusGatewayTimeout},
			{fmt.Errorf("%w: DROP", apperrors.ErrForbiddenOperation), http.StatusUnprocessableEntity},
		}
		for _, tc := range cases {
			pipeline := &mockPipeline{
				RunFunc: func(ctx context.Context, req *services.PipelineRequest) (*services.PipelineResult, error) {
					return nil, tc.err
				},
			}
			mux := newQueryMux(pipeline, &mockHistory{})

			req := authedRequest(http.MethodPost, "/api/queries",
				map[string]any{"data_source_id": dsID, "question": "x"}, principal)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		}
	})
}

func TestListHistory(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New(), OrganizationID: uuid.New()}

	var gotPage, gotPerPage int
	history := &mockHistory{
		ListFunc: func(ctx context.Context, userID uuid.UUID, page, perPage int) (*services.HistoryPage, error) {
			gotPage, gotPerPage = page, perPage
			return &services.HistoryPage{Invocations: []*models.QueryInvocation{}, Total: 3, Page: page, PerPage: perPage}, nil
		},
	}
	mux := newQueryMux(&mockPipeline{}, history)

	req := authedRequest(http.MethodGet, "/api/queries?page=2&per_page=5", nil, principal)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 5, gotPerPage)
}

func TestUpdateInvocation(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New(), OrganizationID: uuid.New()}
	id := uuid.New()

	var gotLabel *string
	var gotFavorite *bool
	history := &mockHistory{
		UpdateAnnotationsFunc: func(ctx context.Context, userID, invID uuid.UUID, label *string, favorite *bool) (*models.QueryInvocation, error) {
			gotLabel, gotFavorite = label, favorite
			return &models.QueryInvocation{ID: invID, UserID: userID, Label: label}, nil
		},
	}
	mux := newQueryMux(&mockPipeline{}, history)

	req := authedRequest(http.MethodPatch, "/api/queries/"+id.String(),
		map[string]any{"label": "revenue", "is_favorite": true}, principal)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotLabel)
	assert.Equal(t, "revenue", *gotLabel)
	require.NotNil(t, gotFavorite)
	assert.True(t, *gotFavorite)
}

func TestDeleteInvocation(t *testing.T) {
	principal := &auth.Principal{UserID: uuid.New(), OrganizationID: uuid.New()}
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		mux := newQueryMux(&mockPipeline{}, &mockHistory{})
		req := authedRequest(http.MethodDelete, "/api/queries/"+id.String(), nil, principal)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("foreign record invisible", func(t *testing.T) {
		history := &mockHistory{
			DeleteFunc: func(ctx context.Context, userID, invID uuid.UUID) error {
				return apperrors.ErrNotFound
			},
		}
		mux := newQueryMux(&mockPipeline{}, history)
		req := authedRequest(http.MethodDelete, "/api/queries/"+id.String(), nil, principal)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
