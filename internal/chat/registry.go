// Package chat implements the real-time connection and room substrate:
// connection tracking, room membership, fan-out, admission control, and the
// protocol state machine that ties them together.
package chat

import (
	"sync"
	"time"

	"github.com/arsallanShahab/chat-app/pkg/logger"

	"github.com/google/uuid"
)

// Sender delivers one serialized frame to a connection's transport. The
// registry owns connection metadata; senders are borrowed for the duration
// of a single send and never closed from here.
type Sender interface {
	Send(data []byte) error
}

// Connection is the registry's record of one live transport session.
type Connection struct {
	ID           string
	Sender       Sender
	Username     string
	RoomID       string
	JoinedAt     time.Time
	LastActivity time.Time
}

// Registry owns every live connection and the room index. A single mutex
// covers both structures so a connection can never be observed in two rooms
// or in a room without a registry entry.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
	rooms *RoomIndex
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: NewRoomIndex(),
	}
}

// Add records a new connection and registers it in the room index. The
// returned id is unique for the lifetime of the process.
func (r *Registry) Add(sender Sender, username, roomID string) string {
	now := time.Now()
	conn := &Connection{
		ID:           uuid.NewString(),
		Sender:       sender,
		Username:     username,
		RoomID:       roomID,
		JoinedAt:     now,
		LastActivity: now,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.rooms.AddToRoom(roomID, conn.ID)
	r.mu.Unlock()

	logger.Info("Connection added: %s for user: %s in room: %s", conn.ID, username, roomID)
	return conn.ID
}

// Remove deletes a connection and its room membership. Removing an unknown
// id is a no-op; close and error paths race with each other.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if ok {
		r.rooms.RemoveFromRoom(conn.RoomID, connID)
		delete(r.conns, connID)
	}
	r.mu.Unlock()

	if ok {
		logger.Info("Connection removed: %s", connID)
	}
}

// Touch updates a connection's last-activity timestamp. Unknown ids are
// ignored.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[connID]; ok {
		conn.LastActivity = time.Now()
	}
}

// Get returns a copy of the connection's metadata.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// SwitchRoom moves a connection from its current room to roomID in one
// critical section and returns the room it left.
func (r *Registry) SwitchRoom(connID, roomID string) (oldRoomID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, found := r.conns[connID]
	if !found {
		return "", false
	}

	oldRoomID = conn.RoomID
	r.rooms.RemoveFromRoom(oldRoomID, connID)
	r.rooms.AddToRoom(roomID, connID)
	conn.RoomID = roomID
	return oldRoomID, true
}

// ActiveUsernames returns the distinct usernames present in a room. Two
// connections for the same username count once.
func (r *Registry) ActiveUsernames(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	usernames := make([]string, 0)
	for _, connID := range r.rooms.MembersOf(roomID) {
		conn, ok := r.conns[connID]
		if !ok || conn.Username == "" {
			continue
		}
		if _, dup := seen[conn.Username]; dup {
			continue
		}
		seen[conn.Username] = struct{}{}
		usernames = append(usernames, conn.Username)
	}
	return usernames
}

// Count returns the number of connections in a room.
func (r *Registry) Count(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.Count(roomID)
}

// TotalConnections returns the number of live connections across all rooms.
func (r *Registry) TotalConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// MembersOf returns the connection ids currently in a room.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.MembersOf(roomID)
}

type member struct {
	id     string
	sender Sender
}

// snapshot captures the senders of a room's members, minus the excluded
// connection, under the registry lock. Sends happen outside the lock.
func (r *Registry) snapshot(roomID, excludeConnID string) []member {
	r.mu.Lock()
	defer r.mu.Unlock()

	connIDs := r.rooms.MembersOf(roomID)
	members := make([]member, 0, len(connIDs))
	for _, connID := range connIDs {
		if connID == excludeConnID {
			continue
		}
		if conn, ok := r.conns[connID]; ok {
			members = append(members, member{id: connID, sender: conn.Sender})
		}
	}
	return members
}
