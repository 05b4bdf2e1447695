package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/services"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Stats not found", "Failed to fetch system statistics")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(stats))
}

func (h *StatsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var patch models.StatsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	stats, err := h.stats.Patch(r.Context(), patch)
	if err != nil {
		writeServiceError(w, r, err, "Stats not found", "Failed to update system statistics")
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Statistics updated successfully", stats))
}

func (h *StatsHandler) TestMirrorConnection(w http.ResponseWriter, r *http.Request) {
	mode, err := h.stats.TestMirrorConnection(r.Context())
	data := map[string]string{"mode": string(mode)}
	if err != nil {
		zap.L().Warn("Firebase connection test failed", zap.String("mode", string(mode)), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, models.APIResponse{
			Success: false,
			Message: "Firebase connection failed",
			Data:    data,
		})
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Firebase connection successful", data))
}
