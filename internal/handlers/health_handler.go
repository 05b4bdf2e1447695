package handlers

import (
	"net/http"
	"time"

	"github.com/campusbuzz/backend/internal/mirror"
)

type HealthHandler struct {
	mirror      mirror.Mirror
	storeDriver string
	now         func() time.Time
}

func NewHealthHandler(m mirror.Mirror, storeDriver string) *HealthHandler {
	return &HealthHandler{
		mirror:      m,
		storeDriver: storeDriver,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now(),
		Services: map[string]string{
			"firebase": string(h.mirror.Mode()),
			"storage":  h.storeDriver,
			"api":      "running",
		},
	})
}
