package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 8192
	sendBufferSize = 64

	// dispatchTimeout bounds the store work behind a single client event.
	dispatchTimeout = 10 * time.Second

	// eventBurst is how many events a connection may send back-to-back
	// before the token bucket starts discarding.
	eventBurst = 20
)

// Client is one WebSocket connection speaking the chat event protocol. It
// implements Session; the write pump drains the send buffer, the read pump
// dispatches inbound operations to the service.
type Client struct {
	id      string
	userID  uuid.UUID
	name    string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	service *Service
	limiter *rateLimiter
	logger  zerolog.Logger
}

// NewClient wraps an upgraded WebSocket connection for an authenticated user.
func NewClient(conn *websocket.Conn, service *Service, userID uuid.UUID, displayName string, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	conn.SetReadLimit(maxFrameSize)
	return &Client{
		id:      id,
		userID:  userID,
		name:    displayName,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		service: service,
		limiter: newRateLimiter(eventBurst, time.Second),
		logger:  logger.With().Str("conn_id", id).Str("user_id", userID.String()).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() uuid.UUID { return c.userID }

// DisplayName returns the authenticated user's display name.
func (c *Client) DisplayName() string { return c.name }

// Enqueue offers an encoded event to the outbound buffer without blocking.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Run registers the client with the service and pumps the connection until it
// closes. It blocks until the read side ends.
func (c *Client) Run() error {
	if err := c.service.Connect(c); err != nil {
		return err
	}
	go c.writePump()
	c.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.once.Do(func() { close(c.done) })

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := c.service.Disconnect(ctx, c.id); err != nil {
			c.logger.Warn().Err(err).Msg("disconnect cleanup failed")
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) && !errors.Is(err, io.EOF) {
				c.logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if !c.limiter.allow() {
			c.sendError("", "rate limit exceeded")
			continue
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError("", "malformed event")
			continue
		}
		c.dispatch(&ev)
	}
}

// dispatch routes one inbound operation to the service. Errors stay local to
// this connection: they become error events for the sender, never broadcasts.
func (c *Client) dispatch(ev *ClientEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var err error
	switch ev.Type {
	case OpJoinRoom:
		err = c.service.Join(ctx, c.id, ev.RoomID)
	case OpLeaveRoom:
		err = c.service.Leave(ctx, c.id, ev.RoomID)
	case OpSendMessage:
		_, err = c.service.SendMessage(ctx, c.id, ev.RoomID, ev.Content, ev.MsgType, ev.ReplyTo)
	case OpTypingStart:
		err = c.service.StartTyping(c.id, ev.RoomID)
	case OpTypingStop:
		err = c.service.StopTyping(c.id, ev.RoomID)
	case OpAddReaction:
		err = c.service.AddReaction(ctx, c.id, ev.MessageID, ev.Emoji)
	case OpLoadOlder:
		err = c.service.LoadOlder(ctx, c.id, ev.RoomID, ev.Before)
	default:
		err = errors.New("unknown event type")
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("op", ev.Type).Msg("operation rejected")
		c.sendError(ev.RoomID, err.Error())
	}
}

func (c *Client) sendError(roomID, msg string) {
	payload, err := json.Marshal(&ServerEvent{
		Type:   EvError,
		RoomID: roomID,
		Error:  msg,
	})
	if err != nil {
		return
	}
	c.Enqueue(payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
