package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

type ExportHandler struct {
	export *services.ExportService
	now    func() time.Time
}

func NewExportHandler(export *services.ExportService) *ExportHandler {
	return &ExportHandler{
		export: export,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export buffers the whole document so a store failure can still be reported
// as a 500 instead of a truncated attachment.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseExportKind(chi.URLParam(r, "type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}
	format, err := services.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		return
	}

	var buf bytes.Buffer
	if err := h.export.Export(r.Context(), &buf, kind, format); err != nil {
		writeServiceError(w, r, err, "", "Failed to export data")
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", kind, h.now().Format("2006-01-02"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
