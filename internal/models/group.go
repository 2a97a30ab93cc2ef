package models

import (
	"time"

	"github.com/google/uuid"
)

// Group represents a study group whose chat channel this service serves.
// The group entity itself is owned by the surrounding CRUD backend; the
// gateway only reads it for authorization and roster data.
type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is one entry in a group's roster.
type Member struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Role        string    `json:"role"` // "owner", "admin" or "member"
}
