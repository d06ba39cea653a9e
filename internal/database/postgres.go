package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/arsallanShahab/chat-app/internal/models"
	"github.com/arsallanShahab/chat-app/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, is_online, last_seen, joined_at, is_blocked,
		       COALESCE(blocked_until, 'epoch'::timestamptz)
		FROM users WHERE username = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.IsOnline, &user.LastSeen,
		&user.JoinedAt, &user.IsBlocked, &user.BlockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, username, roomID string) (*models.User, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (username, is_online, last_seen, joined_at)
		VALUES ($1, true, NOW(), NOW())
		RETURNING id, username, is_online, last_seen, joined_at, is_blocked`

	user := &models.User{}
	err = tx.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.IsOnline, &user.LastSeen,
		&user.JoinedAt, &user.IsBlocked,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Seed room history with the room the user joined through
	historyQuery := `
		INSERT INTO room_history (username, room_id, last_joined)
		VALUES ($1, $2, NOW())
		ON CONFLICT (username, room_id) DO UPDATE SET last_joined = NOW()`
	if _, err := tx.Exec(ctx, historyQuery, username, roomID); err != nil {
		return nil, fmt.Errorf("failed to seed room history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) SetUserOnline(ctx context.Context, username string, online bool) error {
	query := `UPDATE users SET is_online = $2, last_seen = NOW() WHERE username = $1`
	_, err := db.pool.Exec(ctx, query, username, online)
	return err
}

func (db *PostgresDB) UpsertRoomHistory(ctx context.Context, username, roomID string) error {
	query := `
		INSERT INTO room_history (username, room_id, last_joined)
		VALUES ($1, $2, NOW())
		ON CONFLICT (username, room_id) DO UPDATE SET last_joined = NOW()`

	_, err := db.pool.Exec(ctx, query, username, roomID)
	return err
}

func (db *PostgresDB) ListRoomHistory(ctx context.Context, username string) ([]string, error) {
	query := `SELECT room_id FROM room_history WHERE username = $1 ORDER BY last_joined DESC`

	rows, err := db.pool.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, roomID)
	}

	return roomIDs, rows.Err()
}

func (db *PostgresDB) FindUsersByUsernames(ctx context.Context, usernames []string) ([]models.UserPresence, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	query := `SELECT username, last_seen FROM users WHERE username = ANY($1) ORDER BY username`

	rows, err := db.pool.Query(ctx, query, usernames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserPresence
	for rows.Next() {
		var user models.UserPresence
		if err := rows.Scan(&user.Username, &user.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Message Repository Implementation
func (db *PostgresDB) SaveMessage(ctx context.Context, username, roomID, content string, replyTo *int) (*models.Message, error) {
	query := `
		INSERT INTO messages (username, room_id, message, reply_to, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`

	msg := &models.Message{
		Username: username,
		Message:  content,
		RoomID:   roomID,
	}
	err := db.pool.QueryRow(ctx, query, username, roomID, content, replyTo).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if replyTo != nil {
		ref, err := db.resolveReply(ctx, *replyTo)
		if err != nil {
			logger.Warn("Could not resolve reply reference %d: %v", *replyTo, err)
		} else {
			msg.ReplyTo = ref
		}
	}

	return msg, nil
}

func (db *PostgresDB) resolveReply(ctx context.Context, id int) (*models.ReplyRef, error) {
	query := `SELECT id, username, message FROM messages WHERE id = $1`

	ref := &models.ReplyRef{}
	err := db.pool.QueryRow(ctx, query, id).Scan(&ref.ID, &ref.Username, &ref.Message)
	if err != nil {
		return nil, err
	}

	return ref, nil
}

func (db *PostgresDB) LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.username, m.message, m.room_id, m.edited, m.created_at,
		       r.id, r.username, r.message
		FROM messages m
		LEFT JOIN messages r ON m.reply_to = r.id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var replyID *int
		var replyUsername, replyMessage *string
		if err := rows.Scan(
			&msg.ID, &msg.Username, &msg.Message, &msg.RoomID, &msg.Edited, &msg.CreatedAt,
			&replyID, &replyUsername, &replyMessage,
		); err != nil {
			return nil, err
		}
		if replyID != nil {
			msg.ReplyTo = &models.ReplyRef{ID: *replyID, Username: *replyUsername, Message: *replyMessage}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
