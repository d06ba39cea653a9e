package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/arsallanShahab/chat-app/internal/chat"
	"github.com/arsallanShahab/chat-app/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore overrides only Ping; the embedded interface covers the rest.
type stubStore struct {
	database.Store
	pingErr error
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

func TestHealthReportsConnections(t *testing.T) {
	registry := chat.NewRegistry()
	h := NewHealthHandlers(registry, &stubStore{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 200, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["message"])

	conns := body["connections"].(map[string]interface{})
	assert.Equal(t, float64(0), conns["websocket"])
	assert.Equal(t, "connected", conns["database"])
}

func TestHealthReportsStoreOutage(t *testing.T) {
	registry := chat.NewRegistry()
	h := NewHealthHandlers(registry, &stubStore{pingErr: errors.New("down")})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	conns := body["connections"].(map[string]interface{})
	assert.Equal(t, "disconnected", conns["database"])
}
