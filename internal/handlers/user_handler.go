package handlers

import (
	"net/http"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

type UserHandler struct {
	lifecycle *services.LifecycleService
}

func NewUserHandler(lifecycle *services.LifecycleService) *UserHandler {
	return &UserHandler{lifecycle: lifecycle}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.lifecycle.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(users))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid user id"))
		return
	}

	user, err := h.lifecycle.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "User not found", "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}
