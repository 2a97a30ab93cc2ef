package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studyhive/studyhive/internal/models"
)

// fakeSession records every event pushed to it, decoded.
type fakeSession struct {
	id   string
	user uuid.UUID
	name string

	mu     sync.Mutex
	events []ServerEvent
}

func newFakeSession(id, name string) *fakeSession {
	return &fakeSession{id: id, user: uuid.New(), name: name}
}

func (f *fakeSession) ID() string          { return f.id }
func (f *fakeSession) UserID() uuid.UUID   { return f.user }
func (f *fakeSession) DisplayName() string { return f.name }

func (f *fakeSession) Enqueue(payload []byte) bool {
	var ev ServerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return true
}

func (f *fakeSession) ofType(eventType string) []ServerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ServerEvent
	for _, ev := range f.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeSession) lastOfType(eventType string) *ServerEvent {
	evs := f.ofType(eventType)
	if len(evs) == 0 {
		return nil
	}
	return &evs[len(evs)-1]
}

type reactionRec struct {
	userID uuid.UUID
	emoji  string
}

// fakeStore is an in-memory store.Store.
type fakeStore struct {
	mu        sync.Mutex
	groups    map[uuid.UUID]*models.Group
	members   map[uuid.UUID][]models.Member
	history   map[string][]models.Message // newest first, like the real store
	msgRooms  map[string]string
	reactions map[string][]reactionRec
	saved     []models.Message
	saveErr   error

	historyReads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:    make(map[uuid.UUID]*models.Group),
		members:   make(map[uuid.UUID][]models.Member),
		history:   make(map[string][]models.Message),
		msgRooms:  make(map[string]string),
		reactions: make(map[string][]reactionRec),
	}
}

func (s *fakeStore) Close()                     {}
func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) GetGroup(_ context.Context, id uuid.UUID) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups[id], nil
}

func (s *fakeStore) IsGroupMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[groupID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListGroupMembers(_ context.Context, groupID uuid.UUID) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[groupID], nil
}

func (s *fakeStore) SaveMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *msg)
	s.msgRooms[msg.ID] = msg.RoomID
	return nil
}

func (s *fakeStore) RecentMessages(_ context.Context, roomID string, limit int, before int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyReads++
	var out []models.Message
	for _, m := range s.history[roomID] {
		if before != 0 && m.Timestamp >= before {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MessageRoom(_ context.Context, messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgRooms[messageID], nil
}

func (s *fakeStore) AddReaction(_ context.Context, messageID string, userID uuid.UUID, emoji string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions[messageID] {
		if r.userID == userID && r.emoji == emoji {
			return false, nil
		}
	}
	s.reactions[messageID] = append(s.reactions[messageID], reactionRec{userID: userID, emoji: emoji})
	return true, nil
}

func (s *fakeStore) MessageReactions(_ context.Context, messageID string) ([]models.ReactionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []models.ReactionGroup
	byEmoji := make(map[string]int)
	for _, r := range s.reactions[messageID] {
		idx, ok := byEmoji[r.emoji]
		if !ok {
			idx = len(groups)
			byEmoji[r.emoji] = idx
			groups = append(groups, models.ReactionGroup{Emoji: r.emoji})
		}
		groups[idx].Users = append(groups[idx].Users, r.userID.String())
		groups[idx].Count++
	}
	return groups, nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *fakeStore) historyReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyReads
}

// fakeCache is an in-memory MessageCache holding messages newest first.
type fakeCache struct {
	mu     sync.Mutex
	msgs   map[string][]models.Message
	warmed []models.Message
}

func newFakeCache() *fakeCache {
	return &fakeCache{msgs: make(map[string][]models.Message)}
}

func (c *fakeCache) AddMessage(_ context.Context, msg *models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmed = append(c.warmed, *msg)
	return nil
}

func (c *fakeCache) RecentMessages(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.msgs[roomID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *fakeCache) warmedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warmed)
}

func newTestService(fs *fakeStore) *Service {
	return NewService(Config{Store: fs, Logger: zerolog.Nop()})
}

// addGroup registers a group and returns its room ID.
func addGroup(fs *fakeStore, private bool) string {
	g := &models.Group{ID: uuid.New(), Name: "algebra-study", IsPrivate: private, OwnerID: uuid.New()}
	fs.groups[g.ID] = g
	return g.ID.String()
}

func mustConnect(t *testing.T, svc *Service, id, name string) *fakeSession {
	t.Helper()
	sess := newFakeSession(id, name)
	if err := svc.Connect(sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func mustJoin(t *testing.T, svc *Service, connID, roomID string) {
	t.Helper()
	if err := svc.Join(context.Background(), connID, roomID); err != nil {
		t.Fatal(err)
	}
}

func TestJoinPushesHistoryOldestFirst(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	// Store order is newest first.
	fs.history[roomID] = []models.Message{
		{ID: "3", RoomID: roomID, Content: "bye", Timestamp: 3000},
		{ID: "2", RoomID: roomID, Content: "ok", Timestamp: 2000},
		{ID: "1", RoomID: roomID, Content: "hi", Timestamp: 1000},
	}

	svc := newTestService(fs)
	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	joined := c1.lastOfType(EvJoinedRoom)
	if joined == nil {
		t.Fatal("expected a joined_room event")
	}
	if joined.RoomID != roomID {
		t.Errorf("joined_room room = %q, want %q", joined.RoomID, roomID)
	}
	want := []string{"hi", "ok", "bye"}
	if len(joined.History) != len(want) {
		t.Fatalf("expected %d history messages, got %d", len(want), len(joined.History))
	}
	for i, content := range want {
		if joined.History[i].Content != content {
			t.Errorf("history[%d] = %q, want %q", i, joined.History[i].Content, content)
		}
	}
}

func TestJoinHistoryFallsBackOnPartialCache(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	fs.history[roomID] = []models.Message{
		{ID: "3", RoomID: roomID, Content: "bye", Timestamp: 3000},
		{ID: "2", RoomID: roomID, Content: "ok", Timestamp: 2000},
		{ID: "1", RoomID: roomID, Content: "hi", Timestamp: 1000},
	}
	// The cache key's TTL expired and a single new write recreated it, so
	// Redis holds only the newest message while the store has the full page.
	fc := newFakeCache()
	fc.msgs[roomID] = []models.Message{{ID: "3", RoomID: roomID, Content: "bye", Timestamp: 3000}}

	svc := NewService(Config{Store: fs, Cache: fc, Logger: zerolog.Nop(), HistoryLimit: 3})
	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	joined := c1.lastOfType(EvJoinedRoom)
	if joined == nil {
		t.Fatal("expected a joined_room event")
	}
	want := []string{"hi", "ok", "bye"}
	if len(joined.History) != len(want) {
		t.Fatalf("expected the full store page of %d messages, got %d", len(want), len(joined.History))
	}
	for i, content := range want {
		if joined.History[i].Content != content {
			t.Errorf("history[%d] = %q, want %q", i, joined.History[i].Content, content)
		}
	}

	// The fallback page is written back so the cache can serve again.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if got := fc.warmedCount(); got != len(want) {
		t.Errorf("expected %d messages warmed back into the cache, got %d", len(want), got)
	}
}

func TestJoinHistoryServedFromFullCache(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	fc := newFakeCache()
	fc.msgs[roomID] = []models.Message{
		{ID: "2", RoomID: roomID, Content: "ok", Timestamp: 2000},
		{ID: "1", RoomID: roomID, Content: "hi", Timestamp: 1000},
	}

	svc := NewService(Config{Store: fs, Cache: fc, Logger: zerolog.Nop(), HistoryLimit: 2})
	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	joined := c1.lastOfType(EvJoinedRoom)
	if joined == nil {
		t.Fatal("expected a joined_room event")
	}
	if len(joined.History) != 2 || joined.History[0].Content != "hi" || joined.History[1].Content != "ok" {
		t.Errorf("expected cached history [hi ok], got %+v", joined.History)
	}
	if got := fs.historyReadCount(); got != 0 {
		t.Errorf("a full cache page should not touch the store, got %d reads", got)
	}
}

func TestSendMessageFanOut(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	c1 := mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)
	mustJoin(t, svc, "c2", roomID)

	msg, err := svc.SendMessage(context.Background(), "c1", roomID, "hello", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != models.MessageText {
		t.Errorf("default type = %q, want text", msg.Type)
	}

	got := c2.ofType(EvNewMessage)
	if len(got) != 1 {
		t.Fatalf("expected exactly one new_message for c2, got %d", len(got))
	}
	if got[0].Message.Content != "hello" {
		t.Errorf("content = %q, want hello", got[0].Message.Content)
	}
	if got[0].Message.AuthorID != c1.user.String() {
		t.Errorf("author = %q, want %q", got[0].Message.AuthorID, c1.user.String())
	}
	if got[0].RoomID != roomID {
		t.Errorf("room = %q, want %q", got[0].RoomID, roomID)
	}

	// Sender echo is on: the sender's own tabs see the message too.
	if len(c1.ofType(EvNewMessage)) != 1 {
		t.Error("expected the sender to receive its own message")
	}
}

func TestSendMessageRejectedForNonMember(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)
	mustConnect(t, svc, "c3", "Mallory")

	_, err := svc.SendMessage(context.Background(), "c3", roomID, "x", "", "")
	if !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
	if len(c1.ofType(EvNewMessage)) != 0 {
		t.Error("no member should have received a new_message event")
	}
}

func TestSendMessagePerSenderFIFO(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)
	mustJoin(t, svc, "c2", roomID)

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := svc.SendMessage(context.Background(), "c1", roomID, fmt.Sprintf("msg-%d", i), "", ""); err != nil {
			t.Fatal(err)
		}
	}

	got := c2.ofType(EvNewMessage)
	if len(got) != n {
		t.Fatalf("expected %d messages, got %d", n, len(got))
	}
	for i, ev := range got {
		if want := fmt.Sprintf("msg-%d", i); ev.Message.Content != want {
			t.Errorf("message %d = %q, want %q", i, ev.Message.Content, want)
		}
	}
}

func TestSendMessageValidation(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	long := make([]byte, maxContentBytes+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		content string
		msgType string
	}{
		{"empty content", "", ""},
		{"oversized content", string(long), ""},
		{"unknown type", "hi", "carrier-pigeon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(context.Background(), "c1", roomID, tt.content, tt.msgType, "")
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestReplyToMustExistInRoom(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	otherRoom := addGroup(fs, false)
	fs.msgRooms["parent-here"] = roomID
	fs.msgRooms["parent-elsewhere"] = otherRoom

	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	if _, err := svc.SendMessage(context.Background(), "c1", roomID, "re", "", "nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("unknown parent: expected ErrMessageNotFound, got %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), "c1", roomID, "re", "", "parent-elsewhere"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("cross-room parent: expected ErrMessageNotFound, got %v", err)
	}
	msg, err := svc.SendMessage(context.Background(), "c1", roomID, "re", "", "parent-here")
	if err != nil {
		t.Fatalf("valid parent: unexpected error %v", err)
	}
	if msg.ReplyTo != "parent-here" {
		t.Errorf("reply_to = %q, want parent-here", msg.ReplyTo)
	}
}

func TestPersistFailureStillBroadcasts(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	fs.saveErr = errors.New("db down")

	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)
	mustJoin(t, svc, "c2", roomID)

	if _, err := svc.SendMessage(context.Background(), "c1", roomID, "hello", "", ""); err != nil {
		t.Fatalf("send should succeed despite the failing store, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	if len(c2.ofType(EvNewMessage)) != 1 {
		t.Error("broadcast should have happened before the persist failed")
	}
	if fs.savedCount() != 0 {
		t.Error("store should not have recorded the message")
	}
}

func TestPrivateGroupJoinRejectedBeforeMutation(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, true)

	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")

	err := svc.Join(context.Background(), "c1", roomID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if svc.registry.IsMember("c1", roomID) {
		t.Error("rejected join must leave no membership behind")
	}
}

func TestPrivateGroupMemberCanJoin(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, true)
	groupID := uuid.MustParse(roomID)

	svc := newTestService(fs)
	c1 := mustConnect(t, svc, "c1", "Alice")
	fs.members[groupID] = []models.Member{{UserID: c1.user, DisplayName: "Alice", Role: "member"}}

	if err := svc.Join(context.Background(), "c1", roomID); err != nil {
		t.Fatal(err)
	}
	joined := c1.lastOfType(EvJoinedRoom)
	if joined == nil {
		t.Fatal("expected a joined_room event")
	}
	if len(joined.Members) != 1 || !joined.Members[0].Online {
		t.Errorf("expected a roster with Alice online, got %+v", joined.Members)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")

	if err := svc.Join(context.Background(), "c1", uuid.NewString()); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing group: expected ErrRoomNotFound, got %v", err)
	}
	if err := svc.Join(context.Background(), "c1", "not-a-uuid"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("malformed room id: expected ErrRoomNotFound, got %v", err)
	}
}

func TestLoadOlderPagesBackwards(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	fs.history[roomID] = []models.Message{
		{ID: "3", RoomID: roomID, Content: "bye", Timestamp: 3000},
		{ID: "2", RoomID: roomID, Content: "ok", Timestamp: 2000},
		{ID: "1", RoomID: roomID, Content: "hi", Timestamp: 1000},
	}

	svc := NewService(Config{Store: fs, Logger: zerolog.Nop(), HistoryLimit: 2})
	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	joined := c1.lastOfType(EvJoinedRoom)
	if joined == nil || len(joined.History) != 2 {
		t.Fatalf("expected a 2-message first page, got %+v", joined)
	}
	oldest := joined.History[0]
	if oldest.Content != "ok" {
		t.Fatalf("oldest of first page = %q, want ok", oldest.Content)
	}

	if err := svc.LoadOlder(context.Background(), "c1", roomID, oldest.Timestamp); err != nil {
		t.Fatal(err)
	}
	page := c1.lastOfType(EvHistory)
	if page == nil {
		t.Fatal("expected a history event")
	}
	if page.RoomID != roomID {
		t.Errorf("history room = %q, want %q", page.RoomID, roomID)
	}
	if len(page.History) != 1 || page.History[0].Content != "hi" {
		t.Errorf("expected older page [hi], got %+v", page.History)
	}
}

func TestLoadOlderRequiresMembership(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")

	if err := svc.LoadOlder(context.Background(), "c1", roomID, 1000); !errors.Is(err, ErrNotAMember) {
		t.Errorf("expected ErrNotAMember, got %v", err)
	}
}

func TestAddReactionIdempotent(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	fs.msgRooms["m1"] = roomID

	svc := newTestService(fs)
	c1 := mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	for i := 0; i < 2; i++ {
		if err := svc.AddReaction(context.Background(), "c1", "m1", "👍"); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := fs.MessageReactions(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].Count != 1 {
		t.Fatalf("expected one 👍 from one user, got %+v", groups)
	}
	// Only the first call changed anything, so only one broadcast.
	if got := len(c1.ofType(EvReactionUpdate)); got != 1 {
		t.Errorf("expected 1 reaction_update, got %d", got)
	}
}

func TestAddReactionUnknownMessage(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")
	mustJoin(t, svc, "c1", roomID)

	if err := svc.AddReaction(context.Background(), "c1", "ghost", "👍"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestTypingBroadcastAndDisconnectCleanup(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)
	mustJoin(t, svc, "c2", roomID)

	if err := svc.StartTyping("c1", roomID); err != nil {
		t.Fatal(err)
	}
	update := c2.lastOfType(EvTypingUpdate)
	if update == nil || len(update.Typing) != 1 || update.Typing[0] != "Alice" {
		t.Fatalf("expected typing set [Alice], got %+v", update)
	}

	// Alice drops without ever sending typing_stop.
	if err := svc.Disconnect(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	update = c2.lastOfType(EvTypingUpdate)
	if update == nil || len(update.Typing) != 0 {
		t.Fatalf("expected empty typing set after disconnect, got %+v", update)
	}
}

func TestStopTypingBroadcast(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)
	mustJoin(t, svc, "c2", roomID)

	if err := svc.StartTyping("c1", roomID); err != nil {
		t.Fatal(err)
	}
	if err := svc.StopTyping("c1", roomID); err != nil {
		t.Fatal(err)
	}
	update := c2.lastOfType(EvTypingUpdate)
	if update == nil || len(update.Typing) != 0 {
		t.Fatalf("expected empty typing set after stop, got %+v", update)
	}

	// A stop without a start changes nothing and broadcasts nothing new.
	before := len(c2.ofType(EvTypingUpdate))
	if err := svc.StopTyping("c1", roomID); err != nil {
		t.Fatal(err)
	}
	if got := len(c2.ofType(EvTypingUpdate)); got != before {
		t.Errorf("redundant stop should not broadcast, had %d updates, now %d", before, got)
	}
}

func TestTypingRequiresMembership(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)
	mustConnect(t, svc, "c1", "Alice")

	if err := svc.StartTyping("c1", roomID); !errors.Is(err, ErrNotAMember) {
		t.Errorf("expected ErrNotAMember, got %v", err)
	}
}

func TestMemberUpdateOnJoinGoesToOthersOnly(t *testing.T) {
	fs := newFakeStore()
	roomID := addGroup(fs, false)
	svc := newTestService(fs)

	c1 := mustConnect(t, svc, "c1", "Alice")
	c2 := mustConnect(t, svc, "c2", "Bob")
	mustJoin(t, svc, "c1", roomID)

	c1Before := len(c1.ofType(EvMemberUpdate))
	mustJoin(t, svc, "c2", roomID)

	if got := len(c1.ofType(EvMemberUpdate)); got != c1Before+1 {
		t.Errorf("existing member should see one member_update, got %d new", got-c1Before)
	}
	// The joiner gets the roster inside joined_room, not a second push.
	if got := len(c2.ofType(EvMemberUpdate)); got != 0 {
		t.Errorf("joiner should not receive member_update, got %d", got)
	}
}
