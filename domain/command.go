package domain

import (
	"time"
)

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand is a sending intent dispatched to a room's ingest
// worker. Result carries the per-message acknowledgement or rejection
// back to the sender; it must be buffered so the worker never blocks on
// a sender that already gave up.
type PostMessageCommand struct {
	Room      RoomID
	AuthorID  string
	Body      string
	CreatedAt time.Time
	Result    chan PostResult
}

func (c PostMessageCommand) RoomID() RoomID {
	return c.Room
}

type PostResult struct {
	Message Message
	Err     error
}
