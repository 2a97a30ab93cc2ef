package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTypingTTL is how long a typing entry stays visible without a refresh.
// The browser sends an explicit typing_stop, but a client that disconnects or
// hangs mid-keystroke must not leave a ghost indicator behind.
const DefaultTypingTTL = 5 * time.Second

type typingEntry struct {
	name  string
	since time.Time
}

// PresenceTracker maintains the per-room set of currently-typing users.
// Entries expire after ttl even without an explicit stop.
type PresenceTracker struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[string]map[uuid.UUID]typingEntry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewPresenceTracker creates a tracker with the given entry TTL.
func NewPresenceTracker(ttl time.Duration) *PresenceTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &PresenceTracker{
		ttl:   ttl,
		rooms: make(map[string]map[uuid.UUID]typingEntry),
		now:   time.Now,
	}
}

// Start upserts the user's typing entry in a room, refreshing its timestamp.
func (p *PresenceTracker) Start(roomID string, userID uuid.UUID, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rooms[roomID] == nil {
		p.rooms[roomID] = make(map[uuid.UUID]typingEntry)
	}
	p.rooms[roomID][userID] = typingEntry{name: displayName, since: p.now()}
}

// Stop removes the user's typing entry from a room. The bool reports whether
// an entry was present.
func (p *PresenceTracker) Stop(roomID string, userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	if _, present := entries[userID]; !present {
		return false
	}
	delete(entries, userID)
	if len(entries) == 0 {
		delete(p.rooms, roomID)
	}
	return true
}

// Active returns the display names of users currently typing in a room,
// pruning entries older than the TTL. Names are sorted for stable output.
func (p *PresenceTracker) Active(roomID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, ok := p.rooms[roomID]
	if !ok {
		return nil
	}

	cutoff := p.now().Add(-p.ttl)
	names := make([]string, 0, len(entries))
	for userID, entry := range entries {
		if entry.since.Before(cutoff) {
			delete(entries, userID)
			continue
		}
		names = append(names, entry.name)
	}
	if len(entries) == 0 {
		delete(p.rooms, roomID)
	}
	sort.Strings(names)
	return names
}

// ClearUser removes the user's typing entries from the given rooms and
// returns the rooms where an entry was actually removed. Called on disconnect
// so no ghost indicator survives an ungraceful exit.
func (p *PresenceTracker) ClearUser(userID uuid.UUID, rooms []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var cleared []string
	for _, roomID := range rooms {
		entries, ok := p.rooms[roomID]
		if !ok {
			continue
		}
		if _, present := entries[userID]; !present {
			continue
		}
		delete(entries, userID)
		if len(entries) == 0 {
			delete(p.rooms, roomID)
		}
		cleared = append(cleared, roomID)
	}
	return cleared
}
