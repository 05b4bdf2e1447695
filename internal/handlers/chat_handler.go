package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

type ChatHandler struct {
	lifecycle *services.LifecycleService
}

func NewChatHandler(lifecycle *services.LifecycleService) *ChatHandler {
	return &ChatHandler{lifecycle: lifecycle}
}

// Get never fails on mirror errors; an unreadable chat comes back empty.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatId")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Chat ID is required"))
		return
	}

	chat, err := h.lifecycle.ReadChat(r.Context(), chatID)
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to monitor chat")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(chat))
}
