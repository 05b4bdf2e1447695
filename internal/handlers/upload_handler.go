package handlers

import (
	"errors"
	"net/http"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/validators"
)

// multipart framing and the userId field ride on top of the file itself
const formOverhead = 1 << 20

type UploadHandler struct {
	lifecycle *services.LifecycleService
	maxSizeMB int64
}

func NewUploadHandler(lifecycle *services.LifecycleService, maxSizeMB int64) *UploadHandler {
	return &UploadHandler{
		lifecycle: lifecycle,
		maxSizeMB: maxSizeMB,
	}
}

func (h *UploadHandler) UploadIDDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.maxSizeMB * 1024 * 1024

	// Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.NewErrorResponse(validators.ErrFileTooLarge.Error()))
			return
		}
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("idDocument")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(validators.ErrNoFile.Error()))
		return
	}
	file.Close()

	status, img, err := validators.ImageValidator(header, maxBytes)
	if err != nil {
		writeJSON(w, status, models.NewErrorResponse(err.Error()))
		return
	}

	url, err := h.lifecycle.UploadIDDocument(r.Context(), r.FormValue("userId"), img)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserIDRequired):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
		case errors.Is(err, services.ErrImageRejected):
			writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse(err.Error()))
		default:
			writeServiceError(w, r, err, "", "Failed to upload ID document to Firebase")
		}
		return
	}

	writeJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "ID document uploaded successfully",
		URL:     url,
	})
}
