package handlers

import (
	"fmt"
	"net/http"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

type PostHandler struct {
	lifecycle *services.LifecycleService
}

func NewPostHandler(lifecycle *services.LifecycleService) *PostHandler {
	return &PostHandler{lifecycle: lifecycle}
}

func (h *PostHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	posts, err := h.lifecycle.ListFlaggedPosts(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to fetch flagged posts")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(posts))
}

func (h *PostHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid post id"))
		return
	}

	var req models.ModeratePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.lifecycle.ModeratePost(r.Context(), id, req.Action, req.Reason, req.Version)
	if err != nil {
		writeServiceError(w, r, err, "Post not found", "Failed to moderate post")
		return
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse(
		fmt.Sprintf("Post %s successfully", req.Action.Outcome()), result))
}

func (h *PostHandler) ListModerationLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.lifecycle.ListModerationLogs(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to fetch moderation logs")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(logs))
}
