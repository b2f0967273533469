package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpg-service/internal/service"
)

type apiError struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, apiError{
		Error:   code,
		Message: message,
		Details: details,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}

	if err := dec.Decode(&struct{}{}); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", map[string]any{"error": "extra data after json"})
		return false
	}

	return true
}

// writeServiceError maps a service error onto a status code. Messages name
// the action that failed; the underlying error is only logged, except for
// validation failures whose text is written for the user.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, service.ErrEmptySelection):
		writeError(w, http.StatusUnprocessableEntity, "empty_selection", "select at least one cart item", nil)
	case errors.Is(err, service.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", "not enough stock for the requested quantity", nil)
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", "failed to "+action+": order status does not allow it", nil)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "failed to "+action+": not found", nil)
	case errors.Is(err, service.ErrAuth):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired credentials", nil)
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "forbidden", "failed to "+action+": permission denied", nil)
	case errors.Is(err, service.ErrBackendUnavailable):
		logger.Warn("backend unavailable", zap.String("action", action), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", "failed to "+action+", try again later", nil)
	case errors.Is(err, service.ErrOrderSaveFailed):
		logger.Error("order save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order_failed", "failed to save order", nil)
	default:
		logger.Error("request failed", zap.String("action", action), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+action, nil)
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func seqParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil || seq <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid message id", nil)
		return 0, false
	}
	return seq, true
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
