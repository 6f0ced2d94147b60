package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/auth"
	"github.com/lumina-bi/lumina-engine/pkg/services"
)

// QueryHandler exposes the query pipeline and history endpoints.
type QueryHandler struct {
	pipeline services.QueryPipeline
	history  services.HistoryService
	logger   *zap.Logger
}

// NewQueryHandler creates the handler.
func NewQueryHandler(pipeline services.QueryPipeline, history services.HistoryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, history: history, logger: logger}
}

// Register wires the handler's routes onto mux.
func (h *QueryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/queries", h.Run)
	mux.HandleFunc("GET /api/queries", h.List)
	mux.HandleFunc("GET /api/queries/{id}", h.Get)
	mux.HandleFunc("PATCH /api/queries/{id}", h.Update)
	mux.HandleFunc("DELETE /api/queries/{id}", h.Delete)
}

type runQueryRequest struct {
	DataSourceID uuid.UUID `json:"data_source_id"`
	Question     string    `json:"question"`
	Persist      *bool     `json:"persist,omitempty"`
	Label        *string   `json:"label,omitempty"`
}

func (h *QueryHandler) Run(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, h.logger, apperrors.ErrUnauthorized)
		return
	}

	var req runQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.DataSourceID == uuid.Nil || req.Question == "" {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "data_source_id and question are required"})
		return
	}

	// History is opt-out; ad-hoc exploration can pass persist=false.
	persist := req.Persist == nil || *req.Persist

	result, err := h.pipeline.Run(r.Context(), &services.PipelineRequest{
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
		DataSourceID:   req.DataSourceID,
		Question:       req.Question,
		Persist:        persist,
		Label:          req.Label,
	})
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, h.logger, apperrors.ErrUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 0)

	result, err := h.history.List(r.Context(), principal.UserID, page, perPage)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	inv, err := h.history.Get(r.Context(), principal.UserID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

type updateInvocationRequest struct {
	Label      *string `json:"label,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
}

func (h *QueryHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	var req updateInvocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	inv, err := h.history.UpdateAnnotations(r.Context(), principal.UserID, id, req.Label, req.IsFavorite)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

func (h *QueryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := h.history.Delete(r.Context(), principal.UserID, id); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueryHandler) principalAndID(r *http.Request) (*auth.Principal, uuid.UUID, error) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return nil, uuid.Nil, apperrors.ErrUnauthorized
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: invalid id", apperrors.ErrNotFound)
	}
	return principal, id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
