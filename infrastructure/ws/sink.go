package ws

import (
	"context"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink is the bounded outbound queue of one connection. Consume never
// blocks the broadcaster: when the queue is full the oldest pending
// event is evicted to make room for the newest one, and the eviction is
// reported to the caller as a DroppedDeliveryError.
type Sink struct {
	connID domain.ConnectionID
	queue  chan event.DomainEvent
}

func NewSink(connID domain.ConnectionID, capacity int) *Sink {
	if capacity < 1 {
		capacity = 1
	}
	return &Sink{
		connID: connID,
		queue:  make(chan event.DomainEvent, capacity),
	}
}

// Consume enqueues the event, evicting the oldest entries if the queue
// is saturated. The new event is always enqueued; the returned error
// only reports that older deliveries were lost on the way.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	dropped := false
	for {
		select {
		case s.queue <- e:
			if dropped {
				return &errors.DroppedDeliveryError{Connection: s.connID}
			}
			return nil
		default:
		}

		// Full: evict the oldest and retry. The reader may have drained
		// an entry in between, in which case the eviction is a no-op.
		select {
		case <-s.queue:
			dropped = true
		default:
		}
	}
}

// Events exposes the queue to the connection's write pump.
func (s *Sink) Events() <-chan event.DomainEvent {
	return s.queue
}
