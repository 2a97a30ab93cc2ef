package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyhive/studyhive/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetGroup retrieves a group by ID.
func (s *PostgresStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group := &models.Group{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, is_private, owner_id, created_at
		FROM groups WHERE id = $1
	`, id).Scan(
		&group.ID,
		&group.Name,
		&group.IsPrivate,
		&group.OwnerID,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return group, nil
}

// IsGroupMember reports whether a user belongs to a group.
func (s *PostgresStore) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2
		)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListGroupMembers retrieves the roster of a group.
func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gm.user_id, COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''), gm.role
		FROM group_members gm
		LEFT JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.display_name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.AvatarURL, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SaveMessage persists a chat message.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	var replyTo *string
	if msg.ReplyTo != "" {
		replyTo = &msg.ReplyTo
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, author_id, content, type, reply_to, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.RoomID, msg.AuthorID, msg.Content, string(msg.Type), replyTo, msg.Timestamp)
	return err
}

// RecentMessages retrieves messages for a room, newest first.
func (s *PostgresStore) RecentMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.room_id, m.author_id, COALESCE(u.display_name, ''),
		       m.content, m.type, COALESCE(m.reply_to, ''), m.ts
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.room_id = $1 AND ($2::bigint = 0 OR m.ts < $2)
		ORDER BY m.ts DESC
		LIMIT $3
	`, roomID, before, limit)
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
func (s *PostgresStore) MessageRoom(ctx context.Context, messageID string) (string, error) {
	var roomID string
	err := s.pool.QueryRow(ctx, `
		SELECT room_id FROM messages WHERE id = $1
	`, messageID).Scan(&roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return roomID, nil
}

// AddReaction records one user's emoji on a message.
func (s *PostgresStore) AddReaction(ctx context.Context, messageID string, userID uuid.UUID, emoji string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MessageReactions retrieves the aggregated reactions on a message.
func (s *PostgresStore) MessageReactions(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT emoji, user_id FROM reactions
		WHERE message_id = $1
		ORDER BY emoji, created_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.ReactionGroup
	byEmoji := make(map[string]int)
	for rows.Next() {
		var emoji string
		var userID uuid.UUID
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, err
		}
		idx, ok := byEmoji[emoji]
		if !ok {
			idx = len(groups)
			byEmoji[emoji] = idx
			groups = append(groups, models.ReactionGroup{Emoji: emoji})
		}
		groups[idx].Users = append(groups[idx].Users, userID.String())
		groups[idx].Count++
	}
	return groups, rows.Err()
}
