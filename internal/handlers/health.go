package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthHandler struct {
	backend string
	started time.Time
}

func NewHealthHandler(backend string) *HealthHandler {
	return &HealthHandler{backend: backend, started: time.Now()}
}

// HealthCheck returns a simple JSON status
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	response := map[string]string{
		"status": "ok",
		"store":  h.backend,
		"uptime": time.Since(h.started).Truncate(time.Second).String(),
	}
	json.NewEncoder(w).Encode(response)
}
