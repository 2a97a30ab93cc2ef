package models

// MessageType tags the kind of content a chat message carries.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// Message represents a chat message in a group room.
type Message struct {
	ID         string      `json:"id"` // ULID
	RoomID     string      `json:"room_id"`
	AuthorID   string      `json:"author_id"` // User UUID
	AuthorName string      `json:"author_name,omitempty"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	ReplyTo    string      `json:"reply_to,omitempty"`
	Timestamp  int64       `json:"ts"` // Unix ms
}

// ReactionGroup is the aggregated view of one emoji on one message:
// the emoji, how many users reacted with it, and who they are.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}
