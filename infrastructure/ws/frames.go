package ws

import (
	"time"

	"chat-relay/domain"
)

// inboundFrame is the only payload a client may send on an established
// connection: the body of one message for the room it joined.
type inboundFrame struct {
	Body string `json:"body"`
}

type messagePayload struct {
	ID       domain.MessageID `json:"id"`
	Room     domain.RoomID    `json:"room"`
	AuthorID string           `json:"author_id"`
	Body     string           `json:"body"`
	At       time.Time        `json:"at"`
}

type messageFrame struct {
	Type string `json:"type"`
	messagePayload
}

type historyFrame struct {
	Type     string           `json:"type"`
	Messages []messagePayload `json:"messages"`
}

type ackFrame struct {
	Type string           `json:"type"`
	ID   domain.MessageID `json:"id"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

const (
	frameTypeMessage = "message"
	frameTypeHistory = "history"
	frameTypeAck     = "ack"
	frameTypeError   = "error"
)

const (
	codeInvalidPayload    = "INVALID_PAYLOAD"
	codeForbidden         = "FORBIDDEN"
	codePersistenceFailed = "PERSISTENCE_FAILED"
	codeRoomInactive      = "ROOM_INACTIVE"
	codeInternalError     = "INTERNAL_ERROR"
)

func toMessagePayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:       m.ID,
		Room:     m.Room,
		AuthorID: m.AuthorID,
		Body:     m.Body,
		At:       m.CreatedAt,
	}
}

func toMessageFrame(m domain.Message) messageFrame {
	return messageFrame{Type: frameTypeMessage, messagePayload: toMessagePayload(m)}
}

func toHistoryFrame(messages []domain.Message) historyFrame {
	payloads := make([]messagePayload, len(messages))
	for i, m := range messages {
		payloads[i] = toMessagePayload(m)
	}
	return historyFrame{Type: frameTypeHistory, Messages: payloads}
}
