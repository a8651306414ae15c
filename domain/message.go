// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"
)

// MessageID is assigned by the store at the durability step.
// It is strictly increasing within a room and never reused, which makes
// it usable as a pagination cursor.
type MessageID uint64

type Message struct {
	ID        MessageID
	Room      RoomID
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
