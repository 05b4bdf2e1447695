package handlers

import (
	"fmt"
	"net/http"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
	"github.com/campusbuzz/backend/internal/validators"
)

type VerificationHandler struct {
	lifecycle *services.LifecycleService
}

func NewVerificationHandler(lifecycle *services.LifecycleService) *VerificationHandler {
	return &VerificationHandler{lifecycle: lifecycle}
}

// ValidateEmail answers with {valid,message} rather than the usual envelope.
func (h *VerificationHandler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := validators.ValidateEmailDomain(req.Email); err != nil {
		writeJSON(w, http.StatusBadRequest, models.EmailValidationResponse{Valid: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.EmailValidationResponse{Valid: true, Message: "Email domain is valid"})
}

func (h *VerificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.lifecycle.SubmitVerification(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to submit verification request")
		return
	}

	writeJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Verification request submitted successfully",
		ID:      &created.ID,
	})
}

func (h *VerificationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.lifecycle.ListPendingVerifications(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to fetch pending verifications")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(pending))
}

func (h *VerificationHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid verification id"))
		return
	}

	var req models.ReviewVerificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.lifecycle.ReviewVerification(r.Context(), id, req.Status, req.Notes, req.Version)
	if err != nil {
		writeServiceError(w, r, err, "Verification request not found", "Failed to update verification status")
		return
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse(
		fmt.Sprintf("Verification %s successfully", updated.Status), updated))
}

func (h *VerificationHandler) BulkAction(w http.ResponseWriter, r *http.Request) {
	var req models.BulkReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.lifecycle.BulkReview(r.Context(), req.IDs, req.Action, req.Notes)
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to process bulk action")
		return
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse(
		fmt.Sprintf("%d verification requests updated", len(updated)), updated))
}
