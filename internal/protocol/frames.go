// Package protocol defines the JSON frame types exchanged over a chat
// connection and the decoder that maps raw payloads onto them. Every frame
// carries a string "type" tag; payloads that fail to decode are rejected
// before they reach any handler.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/arsallanShahab/chat-app/internal/models"
)

// Client -> server frame types.
const (
	TypeJoin       = "join"
	TypeMessage    = "message"
	TypeTyping     = "typing"
	TypeSwitchRoom = "switch_room"
)

// Server -> client frame types.
const (
	TypeHistory      = "history"
	TypeUserJoined   = "user_joined"
	TypeUserLeft     = "user_left"
	TypeRoomSwitched = "room_switched"
	TypeError        = "error"
)

// Stable error codes carried by error frames.
const (
	CodeInvalidFormat     = "INVALID_FORMAT"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeJoinFailed        = "JOIN_FAILED"
	CodeMessageFailed     = "MESSAGE_FAILED"
	CodeSwitchFailed      = "SWITCH_FAILED"
)

// Inbound is the closed set of client -> server frames.
type Inbound interface {
	inboundFrame()
}

type JoinFrame struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId,omitempty"`
}

type MessageFrame struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
	ReplyTo *int   `json:"replyTo,omitempty"`
}

type TypingFrame struct {
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId,omitempty"`
}

type SwitchRoomFrame struct {
	RoomID string `json:"roomId"`
}

func (JoinFrame) inboundFrame()       {}
func (MessageFrame) inboundFrame()    {}
func (TypingFrame) inboundFrame()     {}
func (SwitchRoomFrame) inboundFrame() {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a raw inbound payload into its typed frame. Malformed JSON,
// a missing or non-string type field, and unrecognized types all return
// ErrInvalidFormat.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidFormat
	}
	if env.Type == "" {
		return nil, ErrInvalidFormat
	}

	switch env.Type {
	case TypeJoin:
		var f JoinFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidFormat
		}
		return f, nil
	case TypeMessage:
		var f MessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidFormat
		}
		return f, nil
	case TypeTyping:
		var f TypingFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidFormat
		}
		return f, nil
	case TypeSwitchRoom:
		var f SwitchRoomFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, ErrInvalidFormat
		}
		return f, nil
	default:
		return nil, ErrInvalidFormat
	}
}

// RoomInfo describes the room a connection just joined.
type RoomInfo struct {
	ID          string   `json:"id"`
	ActiveUsers []string `json:"activeUsers"`
}

type HistoryFrame struct {
	Type      string                `json:"type"`
	Messages  []*models.Message     `json:"messages"`
	Users     []models.UserPresence `json:"users"`
	RoomInfo  RoomInfo              `json:"roomInfo"`
	UserRooms []string              `json:"userRooms"`
}

type MessageOut struct {
	Type      string           `json:"type"`
	ID        int              `json:"id"`
	Username  string           `json:"username"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	RoomID    string           `json:"roomId"`
	ReplyTo   *models.ReplyRef `json:"replyTo,omitempty"`
}

type TypingOut struct {
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoined is broadcast to a room when a connection joins it. Users is
// only populated for first joins, not room switches, matching what clients
// need to refresh their sidebar. ActiveUsers is the room's connection count.
type UserJoined struct {
	Type        string                `json:"type"`
	Username    string                `json:"username"`
	Users       []models.UserPresence `json:"users,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
	ActiveUsers int                   `json:"activeUsers"`
}

type UserLeft struct {
	Type        string    `json:"type"`
	Username    string    `json:"username"`
	Timestamp   time.Time `json:"timestamp"`
	ActiveUsers int       `json:"activeUsers"`
}

type RoomSwitched struct {
	Type     string            `json:"type"`
	RoomID   string            `json:"roomId"`
	Messages []*models.Message `json:"messages"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewHistoryFrame builds the history replay sent to a joining connection.
// Nil slices are normalized so clients always receive JSON arrays.
func NewHistoryFrame(messages []*models.Message, users []models.UserPresence, info RoomInfo, userRooms []string) HistoryFrame {
	if messages == nil {
		messages = []*models.Message{}
	}
	if users == nil {
		users = []models.UserPresence{}
	}
	if info.ActiveUsers == nil {
		info.ActiveUsers = []string{}
	}
	if userRooms == nil {
		userRooms = []string{}
	}
	return HistoryFrame{Type: TypeHistory, Messages: messages, Users: users, RoomInfo: info, UserRooms: userRooms}
}

func NewMessageOut(msg *models.Message) MessageOut {
	return MessageOut{
		Type:      TypeMessage,
		ID:        msg.ID,
		Username:  msg.Username,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
		RoomID:    msg.RoomID,
		ReplyTo:   msg.ReplyTo,
	}
}

func NewTypingOut(username string, isTyping bool, at time.Time) TypingOut {
	return TypingOut{Type: TypeTyping, Username: username, IsTyping: isTyping, Timestamp: at}
}

func NewUserJoined(username string, users []models.UserPresence, at time.Time, activeUsers int) UserJoined {
	return UserJoined{Type: TypeUserJoined, Username: username, Users: users, Timestamp: at, ActiveUsers: activeUsers}
}

func NewUserLeft(username string, at time.Time, activeUsers int) UserLeft {
	return UserLeft{Type: TypeUserLeft, Username: username, Timestamp: at, ActiveUsers: activeUsers}
}

func NewRoomSwitched(roomID string, messages []*models.Message) RoomSwitched {
	if messages == nil {
		messages = []*models.Message{}
	}
	return RoomSwitched{Type: TypeRoomSwitched, RoomID: roomID, Messages: messages}
}

func NewErrorFrame(message, code string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message, Code: code}
}

// Encode serializes an outbound frame for the wire.
func Encode(frame interface{}) ([]byte, error) {
	return json.Marshal(frame)
}
