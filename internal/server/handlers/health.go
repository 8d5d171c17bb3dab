package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/server/database"
)

// Handles health check requests.
type Health struct {
	Store database.Store
}

// GetHandleFunc handles health check requests by verifying the storage backend is reachable.
func (h *Health) GetHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var status api.HealthStatus

	err := h.Store.Ping()
	if err != nil {
		status = api.HealthStatusFailed
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		status = api.HealthStatusOk
		w.WriteHeader(http.StatusOK)
	}

	resp := api.Health{
		Status: status,
	}

	_ = json.NewEncoder(w).Encode(resp)
}
