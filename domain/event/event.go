package event

import (
	"chat-relay/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageAccepted is emitted once a message is durable. The order in
// which these events are emitted for a room is the order in which the
// store assigned message IDs, and fan-out preserves it.
type MessageAccepted struct {
	Message       domain.Message
	Lang          string
	CensoredWords []string
}

func (e MessageAccepted) RoomID() domain.RoomID {
	return e.Message.Room
}
