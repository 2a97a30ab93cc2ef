package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studyhive/studyhive/internal/models"
)

// SQLiteStore handles SQLite database operations. It exists so the gateway
// can run in development without a PostgreSQL instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/studyhive.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/studyhive.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_private INTEGER NOT NULL DEFAULT 0,
		owner_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (group_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'text',
		reply_to TEXT,
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages (room_id, ts DESC);

	CREATE TABLE IF NOT EXISTS reactions (
		message_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		emoji TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (message_id, user_id, emoji)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group := &models.Group{}
	var groupID, ownerID string
	var isPrivate int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, is_private, owner_id, created_at
		FROM groups WHERE id = ?
	`, id.String()).Scan(&groupID, &group.Name, &isPrivate, &ownerID, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if group.ID, err = uuid.Parse(groupID); err != nil {
		return nil, err
	}
	if group.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, err
	}
	group.IsPrivate = isPrivate != 0
	return group, nil
}

// IsGroupMember reports whether a user belongs to a group.
func (s *SQLiteStore) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?
	`, groupID.String(), userID.String()).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListGroupMembers retrieves the roster of a group.
func (s *SQLiteStore) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gm.user_id, COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''), gm.role
		FROM group_members gm
		LEFT JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY u.display_name
	`, groupID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var userID string
		if err := rows.Scan(&userID, &m.DisplayName, &m.AvatarURL, &m.Role); err != nil {
			return nil, err
		}
		if m.UserID, err = uuid.Parse(userID); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SaveMessage persists a chat message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	var replyTo any
	if msg.ReplyTo != "" {
		replyTo = msg.ReplyTo
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, author_id, content, type, reply_to, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.AuthorID, msg.Content, string(msg.Type), replyTo, msg.Timestamp)
	return err
}

// RecentMessages retrieves messages for a room, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.room_id, m.author_id, COALESCE(u.display_name, ''),
		       m.content, m.type, COALESCE(m.reply_to, ''), m.ts
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.room_id = ? AND (? = 0 OR m.ts < ?)
		ORDER BY m.ts DESC
		LIMIT ?
	`, roomID, before, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var msgType string
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.AuthorName,
			&msg.Content,
			&msgType,
			&msg.ReplyTo,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		msg.Type = models.MessageType(msgType)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MessageRoom resolves the room a message belongs to.
func (s *SQLiteStore) MessageRoom(ctx context.Context, messageID string) (string, error) {
	var roomID string
	err := s.db.QueryRowContext(ctx, `
		SELECT room_id FROM messages WHERE id = ?
	`, messageID).Scan(&roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return roomID, nil
}

// AddReaction records one user's emoji on a message.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID string, userID uuid.UUID, emoji string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reactions (message_id, user_id, emoji)
		VALUES (?, ?, ?)
	`, messageID, userID.String(), emoji)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MessageReactions retrieves the aggregated reactions on a message.
func (s *SQLiteStore) MessageReactions(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT emoji, user_id FROM reactions
		WHERE message_id = ?
		ORDER BY emoji, created_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.ReactionGroup
	byEmoji := make(map[string]int)
	for rows.Next() {
		var emoji, userID string
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, err
		}
		idx, ok := byEmoji[emoji]
		if !ok {
			idx = len(groups)
			byEmoji[emoji] = idx
			groups = append(groups, models.ReactionGroup{Emoji: emoji})
		}
		groups[idx].Users = append(groups[idx].Users, userID)
		groups[idx].Count++
	}
	return groups, rows.Err()
}
