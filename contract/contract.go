package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives accepted events for one consumer. Implementations
// must not block the caller: the websocket sink applies a bounded queue
// with a drop-oldest policy and reports evictions as ErrDeliveryDropped.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps rooms to the sinks of their active connections.
// Unsubscribe reports whether the room entry became empty and was
// evicted, so the caller can tear down per-room resources.
type IRegistry interface {
	SinksForRoom(roomID domain.RoomID) []EventSink
	Subscribe(connID domain.ConnectionID, roomID domain.RoomID, sink EventSink)
	Unsubscribe(connID domain.ConnectionID, roomID domain.RoomID) bool
}

// TokenVerifier validates a bearer credential and returns the identity
// it carries. The production implementation verifies signed tokens; a
// trivial double stands in for it in tests.
type TokenVerifier interface {
	Verify(rawToken string) (domain.Identity, error)
}

// Authorizer is the RBAC decision point, invoked synchronously by the
// connection supervisor. The underlying membership data lives with an
// external collaborator; only the boolean check belongs to this system.
type Authorizer interface {
	CanPost(id domain.Identity, room domain.RoomID) bool
	CanRead(id domain.Identity, room domain.RoomID) bool
}

// IMessageStore is the durable message log. Append assigns the
// store-monotonic message ID; ReadRange pages ascending from an
// exclusive cursor; ReadLatest returns the most recent page in
// ascending order for history replay on connect.
type IMessageStore interface {
	Append(room domain.RoomID, authorID, body string) (domain.Message, error)
	ReadRange(room domain.RoomID, cursor *domain.MessageID, limit int) ([]domain.Message, *domain.MessageID, error)
	ReadLatest(room domain.RoomID, limit int) ([]domain.Message, error)
}
