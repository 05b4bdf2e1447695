package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/storage"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into dst and writes the 400 itself on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return false
	}
	return true
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError maps the shared error vocabulary onto status codes.
// notFound and fallback are the client-facing messages for 404 and 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		if len(verr.Fields) > 0 {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
			return
		}
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(verr.Error()))
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrEmptyStatsPatch):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse(notFound))
	case errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("Record was modified by another request, reload and retry"))
	default:
		zap.L().Error(fallback,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(fallback))
	}
}
