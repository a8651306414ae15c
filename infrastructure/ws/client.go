package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Connection supervises one authenticated websocket for the lifetime of
// its room membership. The read pump validates and submits inbound
// messages; the write pump serializes everything going the other way:
// history replay, live fan-out, acknowledgements and rejections.
type Connection struct {
	id        domain.ConnectionID
	room      domain.RoomID
	identity  domain.Identity
	conn      *websocket.Conn
	sink      *Sink
	chat      services.IChatService
	canPost   bool
	control   chan []byte
	log       *slog.Logger
	closeOnce sync.Once
	maxLength int
}

func NewConnection(
	id domain.ConnectionID,
	room domain.RoomID,
	identity domain.Identity,
	conn *websocket.Conn,
	sink *Sink,
	chat services.IChatService,
	canPost bool,
	maxLength int,
	log *slog.Logger) *Connection {
	return &Connection{
		id:        id,
		room:      room,
		identity:  identity,
		conn:      conn,
		sink:      sink,
		chat:      chat,
		canPost:   canPost,
		control:   make(chan []byte, 16),
		maxLength: maxLength,
		log:       log,
	}
}

// Run drives both pumps and returns once the connection is torn down.
func (c *Connection) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	// Either pump exiting tears the whole connection down: closing the
	// socket is what unblocks the other pump from its pending I/O.
	go func() {
		defer wg.Done()
		c.writePump(ctx)
		cancel()
		c.Close()
	}()
	go func() {
		defer wg.Done()
		c.readPump(ctx)
		cancel()
		c.Close()
	}()
	wg.Wait()
}

// Close detaches the connection from its room and closes the socket.
// Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.chat.LeaveRoom(c.id, c.room)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("closing socket", "connection_id", c.id, "error", err)
		}
		c.log.Info("connection closed", "connection_id", c.id, "room_id", c.room, "user_id", c.identity.UserID)
	})
}

func (c *Connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(int64(c.maxLength) + 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", "connection_id", c.id, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.handleInbound(ctx, raw)
	}
}

func (c *Connection) handleInbound(ctx context.Context, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError(codeInvalidPayload, "malformed frame")
		return
	}
	if err := c.admit(frame.Body); err != nil {
		c.sendRejection(err)
		return
	}

	message, err := c.chat.PostMessage(ctx, domain.PostMessageCommand{
		Room:      c.room,
		AuthorID:  c.identity.UserID,
		Body:      frame.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		c.sendRejection(err)
		return
	}
	c.send(ackFrame{Type: frameTypeAck, ID: message.ID})
}

// admit checks a submission against the validation and RBAC rules
// before it is allowed onto the ingest path.
func (c *Connection) admit(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.ErrEmptyBody
	}
	if len(body) > c.maxLength {
		return errors.ErrBodyTooLong
	}
	if !c.canPost {
		return errors.ErrForbidden
	}
	return nil
}

// sendRejection maps a rejected submission onto a wire-level error
// frame. Only the sender learns about the failure.
func (c *Connection) sendRejection(err error) {
	switch {
	case stderrors.Is(err, errors.ErrEmptyBody):
		c.sendError(codeInvalidPayload, "body must not be empty")
	case stderrors.Is(err, errors.ErrBodyTooLong):
		c.sendError(codeInvalidPayload, "body exceeds maximum length")
	case stderrors.Is(err, errors.ErrForbidden):
		c.sendError(codeForbidden, "posting to this room is not allowed")
	case stderrors.Is(err, errors.ErrPersistenceFailed):
		c.sendError(codePersistenceFailed, "message was not stored")
	case stderrors.Is(err, errors.ErrRoomInactive):
		c.sendError(codeRoomInactive, "room has no active worker")
	default:
		c.sendError(codeInternalError, "message could not be processed")
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case raw := <-c.control:
			if !c.write(raw) {
				return
			}
		case evt := <-c.sink.Events():
			accepted, ok := evt.(event.MessageAccepted)
			if !ok {
				continue
			}
			raw, err := json.Marshal(toMessageFrame(accepted.Message))
			if err != nil {
				c.log.Error("marshaling outbound frame", "connection_id", c.id, "error", err)
				continue
			}
			if !c.write(raw) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(raw []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.log.Debug("write failed", "connection_id", c.id, "error", err)
		return false
	}
	return true
}

// send queues a control frame (ack or error) ahead of the live stream.
func (c *Connection) send(payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("marshaling control frame", "connection_id", c.id, "error", err)
		return
	}
	select {
	case c.control <- raw:
	default:
		c.log.Debug("control queue saturated", "connection_id", c.id)
	}
}

func (c *Connection) sendError(code, reason string) {
	c.send(errorFrame{Type: frameTypeError, Code: code, Reason: reason})
}
