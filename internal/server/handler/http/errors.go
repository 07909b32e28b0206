package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/service"
)

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without leaking their text.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrInvalidPIN),
		errors.Is(err, service.ErrPINMismatch),
		errors.Is(err, service.ErrInvalidTheme),
		errors.Is(err, service.ErrInvalidPhone):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrContactLimit):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrContactIndex),
		errors.Is(err, service.ErrNoteNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
