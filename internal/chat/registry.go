package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which connection belongs to which user and which rooms it
// has joined. The per-connection room set and the per-room connection set are
// always updated together under one lock, so neither side can drift from the
// other under concurrent join/leave/disconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	rooms    map[string]map[string]Session // roomID -> connID -> session
}

type sessionState struct {
	session Session
	rooms   map[string]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*sessionState),
		rooms:    make(map[string]map[string]Session),
	}
}

// Connect registers a new session with no room membership.
func (r *Registry) Connect(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; ok {
		return ErrDuplicateConnection
	}
	r.sessions[s.ID()] = &sessionState{
		session: s,
		rooms:   make(map[string]struct{}),
	}
	return nil
}

// Disconnect removes the connection from every room it belonged to and
// discards the connection record. It returns the rooms the connection left so
// the caller can run presence and roster broadcasts.
func (r *Registry) Disconnect(connID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connID]
	if !ok {
		return nil, ErrUnknownConnection
	}

	left := make([]string, 0, len(state.rooms))
	for roomID := range state.rooms {
		r.removeFromRoom(connID, roomID)
		left = append(left, roomID)
	}
	delete(r.sessions, connID)
	return left, nil
}

// Join adds the connection to a room's member set and the room to the
// connection's room set. It is idempotent; the bool reports whether the
// membership is new.
func (r *Registry) Join(connID, roomID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connID]
	if !ok {
		return false, ErrUnknownConnection
	}
	if _, member := state.rooms[roomID]; member {
		return false, nil
	}

	state.rooms[roomID] = struct{}{}
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]Session)
	}
	r.rooms[roomID][connID] = state.session
	return true, nil
}

// Leave is the inverse of Join. The bool reports whether the connection was a
// member.
func (r *Registry) Leave(connID, roomID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connID]
	if !ok {
		return false, ErrUnknownConnection
	}
	if _, member := state.rooms[roomID]; !member {
		return false, nil
	}

	delete(state.rooms, roomID)
	r.removeFromRoom(connID, roomID)
	return true, nil
}

// removeFromRoom must be called with the lock held. A room's live channel
// ceases to exist when its last member leaves.
func (r *Registry) removeFromRoom(connID, roomID string) {
	conns, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.rooms, roomID)
	}
}

// IsMember reports whether the connection has joined the room.
func (r *Registry) IsMember(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[connID]
	if !ok {
		return false
	}
	_, member := state.rooms[roomID]
	return member
}

// Session looks up a registered session by connection ID.
func (r *Registry) Session(connID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[connID]
	if !ok {
		return nil, ErrUnknownConnection
	}
	return state.session, nil
}

// Rooms returns the rooms the connection has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(state.rooms))
	for roomID := range state.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// RoomSessions returns a snapshot of the sessions currently in a room.
func (r *Registry) RoomSessions(roomID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.rooms[roomID]
	sessions := make([]Session, 0, len(conns))
	for _, s := range conns {
		sessions = append(sessions, s)
	}
	return sessions
}

// OnlineUsers returns the set of user IDs with at least one connection in the
// room.
func (r *Registry) OnlineUsers(roomID string) map[uuid.UUID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make(map[uuid.UUID]bool)
	for _, s := range r.rooms[roomID] {
		online[s.UserID()] = true
	}
	return online
}

// ActiveRooms returns the number of rooms with at least one live connection.
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
