// Package handlers contains the thin HTTP layer: decode, delegate to a
// service, encode. No business logic lives here.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/logging"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a service error to a status code and writes the
// uniform error body. Messages pass through the sanitizer so upstream
// errors can't leak credentials.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	WriteJSON(w, status, ErrorResponse{Error: logging.SanitizeError(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInactive),
		errors.Is(err, apperrors.ErrUnsupportedKind),
		errors.Is(err, apperrors.ErrExecutionFailed):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotReadOnly),
		errors.Is(err, apperrors.ErrForbiddenOperation),
		errors.Is(err, apperrors.ErrInvalidQuery):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrGenerationFailed),
		errors.Is(err, apperrors.ErrSchemaUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, apperrors.ErrQueryTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
