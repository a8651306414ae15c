package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

var _ contract.Worker = (*FanoutWorker)(nil)

// FanoutWorker delivers accepted events to every live connection of
// their room, in the order they became durable. Per-connection sinks
// are bounded and apply drop-oldest on overflow, so a slow client can
// never stall the broadcaster or the rest of the room; the drop is
// reported as telemetry, never to the sender.
//
// Permanent sinks (search index, projections) receive every event
// regardless of room.
type FanoutWorker struct {
	log            *slog.Logger
	registry       contract.IRegistry
	events         chan event.DomainEvent
	telemetry      chan event.Event
	permanentSinks []contract.EventSink
}

func NewFanoutWorker(log *slog.Logger,
	registry contract.IRegistry,
	events chan event.DomainEvent,
	telemetry chan event.Event,
	permanentSinks ...contract.EventSink) *FanoutWorker {
	return &FanoutWorker{
		log:            log,
		registry:       registry,
		events:         events,
		telemetry:      telemetry,
		permanentSinks: permanentSinks,
	}
}

func (w *FanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout enqueues one event onto each target's queue. It never blocks
// on a slow connection: Consume is non-blocking by contract.
func (w *FanoutWorker) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.registry.SinksForRoom(evt.RoomID()) {
		if err := sink.Consume(ctx, evt); err != nil {
			w.observeDrop(evt, err)
		}
	}

	for _, sink := range w.permanentSinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Error("permanent sink failed", "error", err)
		}
	}

	w.forwardTelemetry(evt)
}

func (w *FanoutWorker) observeDrop(evt event.DomainEvent, err error) {
	accepted, ok := evt.(event.MessageAccepted)
	if !ok {
		return
	}
	var connID domain.ConnectionID
	if dropped, ok := err.(*errors.DroppedDeliveryError); ok {
		connID = dropped.Connection
	}
	select {
	case w.telemetry <- event.Event{
		Type:      event.DeliveryDroppedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.DeliveryDropped{
			Room:       accepted.Message.Room,
			Connection: connID,
			MessageID:  accepted.Message.ID,
		},
	}:
	default:
		w.log.Debug("Observability telemetry event lost")
	}
}

func (w *FanoutWorker) forwardTelemetry(evt event.DomainEvent) {
	select {
	case w.telemetry <- event.Event{
		Type:      event.MessageFlowType,
		CreatedAt: time.Now().UTC(),
		Payload:   evt,
	}:
	default:
		w.log.Debug("Observability telemetry event lost")
	}
}
