package chat

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arsallanShahab/chat-app/internal/config"
	"github.com/arsallanShahab/chat-app/internal/database"
	"github.com/arsallanShahab/chat-app/internal/protocol"
	"github.com/arsallanShahab/chat-app/pkg/logger"
)

// usernames: letters, digits, hyphens, underscores; length bounds applied
// separately against the configured maximum.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Dispatcher decodes inbound frames, validates them against the session's
// state, and runs the matching handler. Every handler failure is converted
// here into a single error frame to the originating connection; nothing
// terminates the connection or the process.
type Dispatcher struct {
	registry    *Registry
	broadcaster *Broadcaster
	store       database.Store
	limiter     *RateLimiter
	cfg         config.ChatConfig
	now         func() time.Time
}

func NewDispatcher(registry *Registry, broadcaster *Broadcaster, store database.Store, limiter *RateLimiter, cfg config.ChatConfig) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
		limiter:     limiter,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Dispatch runs one raw inbound frame through admission control, decoding,
// and the state machine. Frames for a single session must be dispatched in
// arrival order by the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, raw []byte) {
	if !d.limiter.Admit(sess.remoteAddr) {
		d.sendError(sess, protocol.NewError(protocol.CodeRateLimitExceeded, "Rate limit exceeded. Please slow down."))
		return
	}

	frame, err := protocol.Decode(raw)
	if err != nil {
		d.sendError(sess, protocol.ErrInvalidFormat)
		return
	}

	var failCode string
	switch f := frame.(type) {
	case protocol.JoinFrame:
		failCode = protocol.CodeJoinFailed
		err = d.handleJoin(ctx, sess, f)
	case protocol.MessageFrame:
		failCode = protocol.CodeMessageFailed
		err = d.handleMessage(ctx, sess, f)
	case protocol.TypingFrame:
		failCode = protocol.CodeInvalidFormat
		err = d.handleTyping(sess, f)
	case protocol.SwitchRoomFrame:
		failCode = protocol.CodeSwitchFailed
		err = d.handleSwitchRoom(ctx, sess, f)
	default:
		d.sendError(sess, protocol.ErrInvalidFormat)
		return
	}

	if err != nil {
		logger.Error("Handler error for %s: %v", sess.remoteAddr, err)
		var perr *protocol.Error
		if !errors.As(err, &perr) {
			perr = protocol.NewError(failCode, err.Error())
		}
		d.sendError(sess, perr)
		return
	}

	if sess.connID != "" {
		d.registry.Touch(sess.connID)
	}
}

func (d *Dispatcher) handleJoin(ctx context.Context, sess *Session, f protocol.JoinFrame) error {
	if sess.state != StateUnbound {
		return errors.New("already joined")
	}

	username := strings.TrimSpace(f.Username)
	if !d.validUsername(username) {
		return errors.New("invalid username format")
	}
	roomID := d.roomOrDefault(f.RoomID)

	user, err := d.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if user.Blocked(d.now()) {
			return errors.New("user is temporarily blocked")
		}
		if err := d.store.SetUserOnline(ctx, username, true); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if err := d.store.UpsertRoomHistory(ctx, username, roomID); err != nil {
			return fmt.Errorf("failed to update room history: %w", err)
		}
	case errors.Is(err, database.ErrNotFound):
		if _, err := d.store.CreateUser(ctx, username, roomID); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		logger.Info("New user created: %s", username)
	default:
		return fmt.Errorf("failed to look up user: %w", err)
	}

	sess.connID = d.registry.Add(sess.sender, username, roomID)
	sess.username = username
	sess.state = StateJoined

	messages, err := d.store.LoadRecentMessages(ctx, roomID, d.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	activeUsernames := d.registry.ActiveUsernames(roomID)
	users, err := d.store.FindUsersByUsernames(ctx, activeUsernames)
	if err != nil {
		return fmt.Errorf("failed to load active users: %w", err)
	}

	userRooms, err := d.store.ListRoomHistory(ctx, username)
	if err != nil {
		// History replay still works without the sidebar room list.
		logger.Warn("Failed to load room history for %s: %v", username, err)
	}

	history := protocol.NewHistoryFrame(messages, users, protocol.RoomInfo{ID: roomID, ActiveUsers: activeUsernames}, userRooms)
	if err := d.send(sess, history); err != nil {
		logger.Error("Failed to send history to %s: %v", username, err)
	}

	d.broadcaster.Broadcast(roomID, protocol.NewUserJoined(username, users, d.now(), d.registry.Count(roomID)), sess.connID)

	logger.Info("User %s joined room %s", username, roomID)
	return nil
}

func (d *Dispatcher) handleMessage(ctx context.Context, sess *Session, f protocol.MessageFrame) error {
	if sess.state != StateJoined {
		return errors.New("user not authenticated")
	}

	content := sanitizeMessage(f.Message)
	if content == "" {
		return errors.New("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > d.cfg.MaxMessageLength {
		return fmt.Errorf("message too long, maximum %d characters allowed", d.cfg.MaxMessageLength)
	}
	roomID := d.roomOrDefault(f.RoomID)

	msg, err := d.store.SaveMessage(ctx, sess.username, roomID, content, f.ReplyTo)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	// No exclusion: the sender sees their own echo.
	d.broadcaster.Broadcast(roomID, protocol.NewMessageOut(msg), "")

	logger.Info("Message sent by %s in room %s", sess.username, roomID)
	return nil
}

// handleTyping relays typing notices for joined connections and silently
// drops them otherwise. Nothing is persisted; receivers expire entries on
// their own.
func (d *Dispatcher) handleTyping(sess *Session, f protocol.TypingFrame) error {
	if sess.state != StateJoined {
		return nil
	}

	roomID := d.roomOrDefault(f.RoomID)
	d.broadcaster.Broadcast(roomID, protocol.NewTypingOut(sess.username, f.IsTyping, d.now()), sess.connID)
	return nil
}

func (d *Dispatcher) handleSwitchRoom(ctx context.Context, sess *Session, f protocol.SwitchRoomFrame) error {
	if sess.state != StateJoined {
		return errors.New("user not authenticated")
	}
	if f.RoomID == "" {
		return errors.New("room ID is required")
	}

	oldRoomID, ok := d.registry.SwitchRoom(sess.connID, f.RoomID)
	if !ok {
		return errors.New("connection no longer registered")
	}

	if err := d.store.UpsertRoomHistory(ctx, sess.username, f.RoomID); err != nil {
		logger.Error("Failed to update room history for %s: %v", sess.username, err)
	}

	// The switcher is already out of the old room's index, so no exclusion.
	d.broadcaster.Broadcast(oldRoomID, protocol.NewUserLeft(sess.username, d.now(), d.registry.Count(oldRoomID)), "")

	messages, err := d.store.LoadRecentMessages(ctx, f.RoomID, d.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := d.send(sess, protocol.NewRoomSwitched(f.RoomID, messages)); err != nil {
		logger.Error("Failed to send room_switched to %s: %v", sess.username, err)
	}

	d.broadcaster.Broadcast(f.RoomID, protocol.NewUserJoined(sess.username, nil, d.now(), d.registry.Count(f.RoomID)), sess.connID)

	logger.Info("User %s switched from room %s to %s", sess.username, oldRoomID, f.RoomID)
	return nil
}

// HandleClose forces the Joined -> Closed transition when the transport
// closes or errors: mark the durable user offline, drop the connection, and
// notify the room it last occupied.
func (d *Dispatcher) HandleClose(ctx context.Context, sess *Session) {
	if sess.state != StateJoined {
		sess.state = StateClosed
		return
	}

	var lastRoomID string
	if conn, ok := d.registry.Get(sess.connID); ok {
		lastRoomID = conn.RoomID
	}
	d.registry.Remove(sess.connID)

	if err := d.store.SetUserOnline(ctx, sess.username, false); err != nil {
		logger.Error("Error updating user status: %v", err)
	}

	if lastRoomID != "" {
		d.broadcaster.Broadcast(lastRoomID, protocol.NewUserLeft(sess.username, d.now(), d.registry.Count(lastRoomID)), "")
	}

	sess.state = StateClosed
	logger.Info("User %s disconnected", sess.username)
}

// Touch updates the session's last-activity timestamp; used by heartbeat
// replies.
func (d *Dispatcher) Touch(sess *Session) {
	if sess.connID != "" {
		d.registry.Touch(sess.connID)
	}
}

func (d *Dispatcher) send(sess *Session, frame interface{}) error {
	payload, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	return sess.sender.Send(payload)
}

func (d *Dispatcher) sendError(sess *Session, perr *protocol.Error) {
	if err := d.send(sess, protocol.NewErrorFrame(perr.Message, perr.Code)); err != nil {
		logger.Error("Failed to send error frame to %s: %v", sess.remoteAddr, err)
	}
}

func (d *Dispatcher) roomOrDefault(roomID string) string {
	if roomID == "" {
		return d.cfg.DefaultRoom
	}
	return roomID
}

func (d *Dispatcher) validUsername(username string) bool {
	length := utf8.RuneCountInString(username)
	if length < 2 || length > d.cfg.MaxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(username)
}

func sanitizeMessage(message string) string {
	return html.EscapeString(strings.TrimSpace(message))
}
