package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/studyhive/studyhive/internal/metrics"
	"github.com/studyhive/studyhive/internal/models"
	"github.com/studyhive/studyhive/internal/store"
)

const (
	// maxContentBytes bounds a single chat message's content.
	maxContentBytes = 4096

	defaultHistoryLimit   = 50
	defaultPersistTimeout = 10 * time.Second
)

// MessageCache is the hot history cache in front of the durable store.
// *store.RedisCache implements it; tests use in-memory fakes.
type MessageCache interface {
	AddMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// Config holds the dependencies and tunables for a chat Service.
type Config struct {
	Store          store.Store
	Cache          MessageCache // optional hot history cache
	Logger         zerolog.Logger
	HistoryLimit   int
	TypingTTL      time.Duration
	PersistTimeout time.Duration
}

// Service is the realtime chat core: it owns the connection registry and the
// typing tracker, relays messages into rooms, and glues the join path to the
// durable store. It is constructed explicitly and injected into the transport
// layer; nothing here is a package-level singleton.
//
// Delivery policy: the sender receives its own message back like every other
// member. The web client renders from the push rather than echoing locally,
// which keeps multiple tabs of the same user consistent.
type Service struct {
	registry *Registry
	presence *PresenceTracker
	store    store.Store
	cache    MessageCache
	logger   zerolog.Logger

	historyLimit   int
	persistTimeout time.Duration

	// persistWG tracks in-flight durable writes so Stop can drain them.
	persistWG sync.WaitGroup
}

// NewService creates a chat service wired to the given store and cache.
func NewService(cfg Config) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	return &Service{
		registry:       NewRegistry(),
		presence:       NewPresenceTracker(cfg.TypingTTL),
		store:          cfg.Store,
		cache:          cfg.Cache,
		logger:         cfg.Logger,
		historyLimit:   cfg.HistoryLimit,
		persistTimeout: cfg.PersistTimeout,
	}
}

// Stop waits for in-flight durable writes to finish or the context to expire.
func (s *Service) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.persistWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect registers a new session with no room membership.
func (s *Service) Connect(sess Session) error {
	if err := s.registry.Connect(sess); err != nil {
		return err
	}
	metrics.ConnectionsActive.Inc()
	s.logger.Info().
		Str("conn_id", sess.ID()).
		Str("user_id", sess.UserID().String()).
		Msg("connection registered")
	return nil
}

// Disconnect removes the connection from every room it had joined, clears its
// typing entries, and notifies the affected rooms.
func (s *Service) Disconnect(ctx context.Context, connID string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}

	left, err := s.registry.Disconnect(connID)
	if err != nil {
		return err
	}
	metrics.ConnectionsActive.Dec()
	metrics.RoomsActive.Set(float64(s.registry.ActiveRooms()))

	cleared := s.presence.ClearUser(sess.UserID(), left)
	for _, roomID := range cleared {
		s.broadcastTyping(roomID)
	}
	for _, roomID := range left {
		s.broadcastRoster(ctx, roomID, "")
	}

	s.logger.Info().
		Str("conn_id", connID).
		Int("rooms_left", len(left)).
		Msg("connection closed")
	return nil
}

// Join authorizes the user against the underlying group, updates the
// registry, and pushes recent history plus the live roster to the joining
// connection only. Authorization runs before any registry mutation; a
// rejected join leaves no membership behind.
func (s *Service) Join(ctx context.Context, connID, roomID string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}

	groupID, err := uuid.Parse(roomID)
	if err != nil {
		return ErrRoomNotFound
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrRoomNotFound
	}
	if group.IsPrivate {
		member, err := s.store.IsGroupMember(ctx, groupID, sess.UserID())
		if err != nil {
			return err
		}
		if !member {
			return ErrNotAuthorized
		}
	}

	joined, err := s.registry.Join(connID, roomID)
	if err != nil {
		return err
	}
	metrics.RoomsActive.Set(float64(s.registry.ActiveRooms()))

	history, err := s.history(ctx, roomID)
	if err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID).Msg("history fetch failed")
		history = nil
	}
	roster := s.roster(ctx, roomID)

	s.send(sess, &ServerEvent{
		Type:    EvJoinedRoom,
		RoomID:  roomID,
		History: history,
		Members: roster,
	})

	// A rejoin from the same connection changes nothing for the others.
	if joined {
		s.broadcastRoster(ctx, roomID, connID)
	}
	return nil
}

// Leave removes the connection from a room. No-op if it was not a member.
func (s *Service) Leave(ctx context.Context, connID, roomID string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}

	left, err := s.registry.Leave(connID, roomID)
	if err != nil {
		return err
	}
	if !left {
		return nil
	}
	metrics.RoomsActive.Set(float64(s.registry.ActiveRooms()))

	if s.presence.Stop(roomID, sess.UserID()) {
		s.broadcastTyping(roomID)
	}
	s.broadcastRoster(ctx, roomID, "")
	return nil
}

// SendMessage relays a message to every connection in the room, including the
// sender, then persists it asynchronously. The broadcast is not held back by
// the durable write: if that write fails it is logged and counted, and the
// live feed has already moved on. Availability over durability, by contract
// with the rest of the app.
func (s *Service) SendMessage(ctx context.Context, connID, roomID, content, msgType, replyTo string) (*models.Message, error) {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return nil, err
	}
	if !s.registry.IsMember(connID, roomID) {
		return nil, ErrNotAMember
	}

	if content == "" || len(content) > maxContentBytes {
		return nil, ErrInvalidMessage
	}
	mt := models.MessageType(msgType)
	if msgType == "" {
		mt = models.MessageText
	}
	if !mt.Valid() {
		return nil, ErrInvalidMessage
	}

	if replyTo != "" {
		parentRoom, err := s.store.MessageRoom(ctx, replyTo)
		if err != nil {
			return nil, err
		}
		if parentRoom != roomID {
			return nil, ErrMessageNotFound
		}
	}

	msg := &models.Message{
		ID:         ulid.Make().String(),
		RoomID:     roomID,
		AuthorID:   sess.UserID().String(),
		AuthorName: sess.DisplayName(),
		Content:    content,
		Type:       mt,
		ReplyTo:    replyTo,
		Timestamp:  time.Now().UnixMilli(),
	}

	s.broadcast(roomID, &ServerEvent{
		Type:    EvNewMessage,
		RoomID:  roomID,
		Message: msg,
	})
	metrics.MessagesRelayed.WithLabelValues(string(mt)).Inc()

	s.persistAsync(msg)
	return msg, nil
}

// persistAsync writes the message to the durable store and the hot cache on a
// detached context, so a sender disconnecting mid-flight cannot cancel the
// write the rest of the room already saw.
func (s *Service) persistAsync(msg *models.Message) {
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()

		start := time.Now()
		if err := s.store.SaveMessage(ctx, msg); err != nil {
			metrics.MessagePersistFailures.Inc()
			s.logger.Error().Err(err).
				Str("message_id", msg.ID).
				Str("room_id", msg.RoomID).
				Msg("message persist failed after broadcast")
		}
		metrics.StoreLatency.Observe(time.Since(start).Seconds())

		if s.cache != nil {
			if err := s.cache.AddMessage(ctx, msg); err != nil {
				s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("history cache write failed")
			}
		}
	}()
}

// AddReaction appends the user to the emoji's user set on a message and
// broadcasts the updated reaction groups to the owning room. The room is
// resolved from the message record, since the client does not send it.
func (s *Service) AddReaction(ctx context.Context, connID, messageID, emoji string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}
	if emoji == "" {
		return ErrInvalidMessage
	}

	roomID, err := s.store.MessageRoom(ctx, messageID)
	if err != nil {
		return err
	}
	if roomID == "" {
		return ErrMessageNotFound
	}
	if !s.registry.IsMember(connID, roomID) {
		return ErrNotAMember
	}

	added, err := s.store.AddReaction(ctx, messageID, sess.UserID(), emoji)
	if err != nil {
		return err
	}
	if !added {
		// Same user, same emoji: nothing changed, nothing to announce.
		return nil
	}
	metrics.ReactionsAdded.Inc()

	reactions, err := s.store.MessageReactions(ctx, messageID)
	if err != nil {
		return err
	}
	s.broadcast(roomID, &ServerEvent{
		Type:      EvReactionUpdate,
		RoomID:    roomID,
		MessageID: messageID,
		Reactions: reactions,
	})
	return nil
}

// StartTyping marks the user as typing in a room and broadcasts the updated
// typing set.
func (s *Service) StartTyping(connID, roomID string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}
	if !s.registry.IsMember(connID, roomID) {
		return ErrNotAMember
	}

	s.presence.Start(roomID, sess.UserID(), sess.DisplayName())
	metrics.TypingEvents.WithLabelValues("start").Inc()
	s.broadcastTyping(roomID)
	return nil
}

// StopTyping removes the user's typing entry and broadcasts the updated set.
func (s *Service) StopTyping(connID, roomID string) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}
	if !s.registry.IsMember(connID, roomID) {
		return ErrNotAMember
	}

	if s.presence.Stop(roomID, sess.UserID()) {
		metrics.TypingEvents.WithLabelValues("stop").Inc()
		s.broadcastTyping(roomID)
	}
	return nil
}

// LoadOlder pushes a page of room history older than the given unix-ms
// timestamp to the requesting connection, oldest first. Older pages always
// come from the durable store; the cache only holds the hot tail.
func (s *Service) LoadOlder(ctx context.Context, connID, roomID string, before int64) error {
	sess, err := s.registry.Session(connID)
	if err != nil {
		return err
	}
	if !s.registry.IsMember(connID, roomID) {
		return ErrNotAMember
	}

	messages, err := s.store.RecentMessages(ctx, roomID, s.historyLimit, before)
	if err != nil {
		return err
	}
	reverseMessages(messages)
	s.send(sess, &ServerEvent{
		Type:    EvHistory,
		RoomID:  roomID,
		History: messages,
	})
	return nil
}

// history returns the most recent messages for a room, oldest first. The hot
// cache is tried first; PostgreSQL is the fallback and the source of truth.
// A cache page shorter than the limit is not trusted: the key's TTL may have
// expired and been recreated by a recent write, leaving only the newest few
// entries while the store still holds a full page.
func (s *Service) history(ctx context.Context, roomID string) ([]models.Message, error) {
	var messages []models.Message

	if s.cache != nil {
		cached, err := s.cache.RecentMessages(ctx, roomID, s.historyLimit)
		if err != nil {
			s.logger.Warn().Err(err).Str("room_id", roomID).Msg("history cache read failed")
		} else if len(cached) >= s.historyLimit {
			messages = cached
		}
	}

	if messages == nil {
		var err error
		messages, err = s.store.RecentMessages(ctx, roomID, s.historyLimit, 0)
		if err != nil {
			return nil, err
		}
		s.warmCache(messages)
	}

	// Store order is newest-first; clients render oldest-first.
	reverseMessages(messages)
	return messages, nil
}

// warmCache writes a store page back into the hot cache off the join path,
// so the next join in the room is served from Redis again. Best-effort.
func (s *Service) warmCache(messages []models.Message) {
	if s.cache == nil || len(messages) == 0 {
		return
	}
	page := make([]models.Message, len(messages))
	copy(page, messages)

	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		for i := range page {
			if err := s.cache.AddMessage(ctx, &page[i]); err != nil {
				s.logger.Warn().Err(err).Str("room_id", page[i].RoomID).Msg("history cache warm failed")
				return
			}
		}
	}()
}

func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

// roster returns the group's member list with live online flags.
func (s *Service) roster(ctx context.Context, roomID string) []MemberStatus {
	groupID, err := uuid.Parse(roomID)
	if err != nil {
		return nil
	}
	members, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID).Msg("roster fetch failed")
		return nil
	}

	online := s.registry.OnlineUsers(roomID)
	roster := make([]MemberStatus, len(members))
	for i, m := range members {
		roster[i] = MemberStatus{Member: m, Online: online[m.UserID]}
	}
	return roster
}

// broadcast encodes an event once and fans it out to every connection in the
// room. Enqueue never blocks; a session with a full buffer misses the event
// and is counted, its pumps decide when the connection itself dies.
func (s *Service) broadcast(roomID string, ev *ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event", ev.Type).Msg("event encode failed")
		return
	}
	for _, sess := range s.registry.RoomSessions(roomID) {
		if !sess.Enqueue(payload) {
			metrics.EventsDropped.Inc()
			s.logger.Warn().
				Str("conn_id", sess.ID()).
				Str("event", ev.Type).
				Msg("event dropped, session buffer full")
		}
	}
}

// broadcastExcept is broadcast minus one connection.
func (s *Service) broadcastExcept(roomID, exceptConnID string, ev *ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event", ev.Type).Msg("event encode failed")
		return
	}
	for _, sess := range s.registry.RoomSessions(roomID) {
		if sess.ID() == exceptConnID {
			continue
		}
		if !sess.Enqueue(payload) {
			metrics.EventsDropped.Inc()
		}
	}
}

// send pushes an event to a single session.
func (s *Service) send(sess Session, ev *ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error().Err(err).Str("event", ev.Type).Msg("event encode failed")
		return
	}
	if !sess.Enqueue(payload) {
		metrics.EventsDropped.Inc()
	}
}

func (s *Service) broadcastTyping(roomID string) {
	s.broadcast(roomID, &ServerEvent{
		Type:   EvTypingUpdate,
		RoomID: roomID,
		Typing: s.presence.Active(roomID),
	})
}

func (s *Service) broadcastRoster(ctx context.Context, roomID, exceptConnID string) {
	roster := s.roster(ctx, roomID)
	ev := &ServerEvent{
		Type:    EvMemberUpdate,
		RoomID:  roomID,
		Members: roster,
	}
	if exceptConnID == "" {
		s.broadcast(roomID, ev)
		return
	}
	s.broadcastExcept(roomID, exceptConnID, ev)
}
