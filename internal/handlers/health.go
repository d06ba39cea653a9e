package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arsallanShahab/chat-app/internal/chat"
	"github.com/arsallanShahab/chat-app/internal/database"
	"github.com/arsallanShahab/chat-app/pkg/logger"
)

type HealthHandlers struct {
	registry  *chat.Registry
	store     database.Store
	startedAt time.Time
}

func NewHealthHandlers(registry *chat.Registry, store database.Store) *HealthHandlers {
	return &HealthHandlers{
		registry:  registry,
		store:     store,
		startedAt: time.Now(),
	}
}

type healthResponse struct {
	Uptime      float64           `json:"uptime"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	Connections healthConnections `json:"connections"`
}

type healthConnections struct {
	WebSocket int    `json:"websocket"`
	Database  string `json:"database"`
}

// Health reports process uptime, live connection count, and store
// reachability.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	resp := healthResponse{
		Uptime:    time.Since(h.startedAt).Seconds(),
		Message:   "OK",
		Timestamp: time.Now(),
		Connections: healthConnections{
			WebSocket: h.registry.TotalConnections(),
			Database:  dbStatus,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Error writing health response: %v", err)
	}
}
