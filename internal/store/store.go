package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/studyhive/studyhive/internal/models"
)

// Store defines the interface for durable storage of groups, rosters,
// messages and reactions. Both PostgresStore and SQLiteStore implement this
// interface; the chat gateway never talks to the database directly.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Group operations (read-only: groups are owned by the CRUD backend)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error)

	// Message operations
	SaveMessage(ctx context.Context, msg *models.Message) error
	// RecentMessages returns up to limit messages for a room, newest first.
	// A before timestamp of 0 means "from the latest".
	RecentMessages(ctx context.Context, roomID string, limit int, before int64) ([]models.Message, error)
	// MessageRoom resolves the room a message belongs to. Returns "" with a
	// nil error when the message is unknown.
	MessageRoom(ctx context.Context, messageID string) (string, error)

	// Reaction operations
	// AddReaction records one user's emoji on a message. Returns false when
	// the same user+emoji pair already existed (idempotent).
	AddReaction(ctx context.Context, messageID string, userID uuid.UUID, emoji string) (bool, error)
	MessageReactions(ctx context.Context, messageID string) ([]models.ReactionGroup, error)
}
