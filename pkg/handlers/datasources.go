package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/auth"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/services"
)

// DataSourceHandler exposes data source management endpoints.
type DataSourceHandler struct {
	service services.DataSourceService
	schemas services.SchemaService
	logger  *zap.Logger
}

// NewDataSourceHandler creates the handler.
func NewDataSourceHandler(service services.DataSourceService, schemas services.SchemaService, logger *zap.Logger) *DataSourceHandler {
	return &DataSourceHandler{service: service, schemas: schemas, logger: logger}
}

// Register wires the handler's routes onto mux.
func (h *DataSourceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/data-sources", h.Create)
	mux.HandleFunc("GET /api/data-sources", h.List)
	mux.HandleFunc("GET /api/data-sources/{id}", h.Get)
	mux.HandleFunc("PATCH /api/data-sources/{id}", h.Update)
	mux.HandleFunc("DELETE /api/data-sources/{id}", h.Delete)
	mux.HandleFunc("POST /api/data-sources/test", h.TestConnectionParams)
	mux.HandleFunc("POST /api/data-sources/{id}/test", h.TestConnection)
	mux.HandleFunc("GET /api/data-sources/{id}/schema", h.GetSchema)
	mux.HandleFunc("POST /api/data-sources/{id}/schema/refresh", h.RefreshSchema)
	mux.HandleFunc("GET /api/data-sources/kinds", h.ListKinds)
}

func (h *DataSourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, h.logger, apperrors.ErrUnauthorized)
		return
	}

	var req services.CreateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ds, err := h.service.Create(r.Context(), principal.OrganizationID, &req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, ds)
}

func (h *DataSourceHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, h.logger, apperrors.ErrUnauthorized)
		return
	}

	sources, err := h.service.List(r.Context(), principal.OrganizationID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data_sources": sources})
}

func (h *DataSourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	ds, err := h.service.Get(r.Context(), principal.OrganizationID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, ds)
}

func (h *DataSourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	var req services.UpdateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ds, err := h.service.Update(r.Context(), principal.OrganizationID, id, &req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, ds)
}

func (h *DataSourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), principal.OrganizationID, id); err != nil {
		WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DataSourceHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	result, err := h.service.TestConnection(r.Context(), principal.OrganizationID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// TestConnectionParams probes a connection described entirely by the
// request body, so callers can validate parameters before saving them.
func (h *DataSourceHandler) TestConnectionParams(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.PrincipalFrom(r.Context()); !ok {
		WriteError(w, h.logger, apperrors.ErrUnauthorized)
		return
	}

	var req services.CreateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.service.TestConnectionParams(r.Context(), &req)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *DataSourceHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	h.serveSchema(w, r, false)
}

func (h *DataSourceHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	h.serveSchema(w, r, true)
}

func (h *DataSourceHandler) serveSchema(w http.ResponseWriter, r *http.Request, forceRefresh bool) {
	principal, id, err := h.principalAndID(r)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	ds, err := h.service.Get(r.Context(), principal.OrganizationID, id)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	schema, err := h.schemas.GetSchema(r.Context(), ds, forceRefresh)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, schema)
}

func (h *DataSourceHandler) ListKinds(w http.ResponseWriter, r *http.Request) {
	kinds := []models.DataSourceKind{models.KindPostgres, models.KindMySQL, models.KindSQLite, models.KindCSV}
	supported := map[string]bool{}
	for _, info := range datasource.RegisteredAdapters() {
		supported[info.Kind] = true
	}

	type kindInfo struct {
		Kind      models.DataSourceKind `json:"kind"`
		Supported bool                  `json:"supported"`
	}
	out := make([]kindInfo, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, kindInfo{Kind: kind, Supported: supported[string(kind)]})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"kinds": out})
}

func (h *DataSourceHandler) principalAndID(r *http.Request) (*auth.Principal, uuid.UUID, error) {
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
