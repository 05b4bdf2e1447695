package handlers

import (
	"net/http"
	"strconv"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

const defaultReplayLimit = 100

type MirrorHandler struct {
	replayer *services.MirrorReplayer
}

func NewMirrorHandler(replayer *services.MirrorReplayer) *MirrorHandler {
	return &MirrorHandler{replayer: replayer}
}

// Replay drains pending outbox tasks; ?limit= caps one pass.
func (h *MirrorHandler) Replay(w http.ResponseWriter, r *http.Request) {
	limit := defaultReplayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("limit must be a positive integer"))
			return
		}
		limit = n
	}

	res, err := h.replayer.Replay(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err, "", "Failed to replay mirror tasks")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(res))
}
