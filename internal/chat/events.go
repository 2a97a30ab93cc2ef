package chat

import (
	"github.com/google/uuid"

	"github.com/studyhive/studyhive/internal/models"
)

// Client-to-server operation types.
const (
	OpJoinRoom    = "join_room"
	OpLeaveRoom   = "leave_room"
	OpSendMessage = "send_message"
	OpTypingStart = "typing_start"
	OpTypingStop  = "typing_stop"
	OpAddReaction = "add_reaction"
	OpLoadOlder   = "load_older"
)

// Server-to-client push types.
const (
	EvJoinedRoom     = "joined_room"
	EvHistory        = "history"
	EvNewMessage     = "new_message"
	EvTypingUpdate   = "typing_update"
	EvMemberUpdate   = "member_update"
	EvReactionUpdate = "reaction_update"
	EvError          = "error"
)

// ClientEvent is one inbound operation from a client connection.
type ClientEvent struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id,omitempty"`
	Content   string `json:"content,omitempty"`
	MsgType   string `json:"msg_type,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	// Before is a unix-ms timestamp bound for load_older pagination.
	Before int64 `json:"before,omitempty"`
}

// MemberStatus is one roster entry with its live online flag, derived from
// whether any of the member's connections is currently in the room.
type MemberStatus struct {
	models.Member
	Online bool `json:"online"`
}

// ServerEvent is one outbound push to a client connection. Only the fields
// relevant to the event type are set.
type ServerEvent struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	Message   *models.Message        `json:"message,omitempty"`
	History   []models.Message       `json:"history,omitempty"`
	Members   []MemberStatus         `json:"members,omitempty"`
	Typing    []string               `json:"typing,omitempty"`
	MessageID string                 `json:"message_id,omitempty"`
	Reactions []models.ReactionGroup `json:"reactions,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Session is one live client connection as seen by the chat service. The
// WebSocket client implements it; tests use in-memory fakes.
type Session interface {
	ID() string
	UserID() uuid.UUID
	DisplayName() string
	// Enqueue offers an encoded server event to the session's outbound
	// buffer without blocking. It reports false when the buffer is full or
	// the session is closed.
	Enqueue(payload []byte) bool
}
