package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/storage"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", fmt.Errorf("get: %w", storage.ErrNotFound), http.StatusNotFound, "Thing not found"},
		{"conflict", storage.ErrConflict, http.StatusConflict, "Record was modified by another request, reload and retry"},
		{"invalid status", services.ErrInvalidStatus, http.StatusBadRequest, services.ErrInvalidStatus.Error()},
		{"invalid action", services.ErrInvalidAction, http.StatusBadRequest, services.ErrInvalidAction.Error()},
		{"validation", &services.ValidationError{
			Field: "email", Message: "bad",
			Fields: []models.FieldError{{Field: "email", Message: "bad"}},
		}, http.StatusBadRequest, "Validation failed"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "Failed to do thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/things/1", nil)
			writeServiceError(rec, req, tt.err, "Thing not found", "Failed to do thing")

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp models.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success || resp.Message != tt.message {
				t.Fatalf("unexpected body %+v", resp)
			}
		})
	}
}

func TestWriteServiceErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	writeServiceError(rec, req, errors.New("dial tcp 10.0.0.3:27017: refused"), "", "Failed to fetch system statistics")

	if body := rec.Body.String(); !json.Valid([]byte(body)) {
		t.Fatalf("expected a JSON body, got %q", body)
	}
	var resp models.APIResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Message != "Failed to fetch system statistics" {
		t.Fatalf("internal detail leaked: %q", resp.Message)
	}
}
