package database

import (
	"context"
	"errors"

	"github.com/arsallanShahab/chat-app/internal/models"
)

// ErrNotFound is returned by lookups for rows that do not exist, so callers
// never depend on driver-specific sentinel errors.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, roomID string) (*models.User, error)
	SetUserOnline(ctx context.Context, username string, online bool) error
	UpsertRoomHistory(ctx context.Context, username, roomID string) error
	ListRoomHistory(ctx context.Context, username string) ([]string, error)
	FindUsersByUsernames(ctx context.Context, usernames []string) ([]models.UserPresence, error)
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, username, roomID, content string, replyTo *int) (*models.Message, error)
	LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error)
}

type Store interface {
	UserRepository
	MessageRepository
	Ping(ctx context.Context) error
	Close() error
}
