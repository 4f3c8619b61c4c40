package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/service"
	"github.com/afterword/backend/pkg/auth"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps a service error onto a status and error code.
// Unrecognized errors are logged and reported as fallback with 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Code)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "contact_exists")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		logging.FromContext(r.Context()).Error(fallback, slog.Any("error", err), slog.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a bounded JSON body into v, writing 400 invalid_json on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// callerID returns the authenticated user, writing 401 when missing.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok || id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return id, true
}
