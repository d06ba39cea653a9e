package chat

import (
	"github.com/arsallanShahab/chat-app/internal/protocol"
	"github.com/arsallanShahab/chat-app/pkg/logger"
)

// Broadcaster fans frames out to a room's members. It only reads the
// registry, except that a failed send removes the failing member through
// the registry's own synchronized path.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast serializes the frame once and delivers it to every member of
// roomID except excludeConnID (empty string excludes nobody). A failure for
// one member drops that member from the registry and never aborts delivery
// to the rest. Unknown or empty rooms are a silent no-op. The returned
// counts exist for diagnostics only.
func (b *Broadcaster) Broadcast(roomID string, frame interface{}, excludeConnID string) (sent, failed int) {
	members := b.registry.snapshot(roomID, excludeConnID)
	if len(members) == 0 {
		return 0, 0
	}

	payload, err := protocol.Encode(frame)
	if err != nil {
		logger.Error("Failed to encode broadcast frame for room %s: %v", roomID, err)
		return 0, 0
	}

	for _, m := range members {
		if err := m.sender.Send(payload); err != nil {
			logger.Error("Failed to send to connection %s: %v", m.id, err)
			b.registry.Remove(m.id)
			failed++
			continue
		}
		sent++
	}

	logger.Debug("Broadcast to room %s: %d success, %d failures", roomID, sent, failed)
	return sent, failed
}
