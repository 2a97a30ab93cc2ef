package chat

import "errors"

var (
	// ErrUnknownConnection is returned for operations on a connection ID the
	// registry has never seen or has already discarded.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrDuplicateConnection is returned when a connection ID is registered twice.
	ErrDuplicateConnection = errors.New("connection already registered")

	// ErrNotAMember is returned when a connection operates on a room it has
	// not joined.
	ErrNotAMember = errors.New("not a member of this room")

	// ErrRoomNotFound is returned when the target room's group does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrMessageNotFound is returned when a referenced message does not exist
	// in the target room.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotAuthorized is returned when a user may not join a private group.
	ErrNotAuthorized = errors.New("not authorized to join this room")

	// ErrInvalidMessage is returned for empty, oversized or mistyped content.
	ErrInvalidMessage = errors.New("invalid message")
)
