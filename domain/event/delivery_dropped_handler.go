package event

import (
	"log/slog"
	"sync"

	"chat-relay/domain"
	"chat-relay/errors"
)

// DeliveryDroppedHandler counts frames evicted from outbound queues,
// per connection. Drops are observable here and nowhere else: senders
// never learn about them.
type DeliveryDroppedHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter uint64
	drops   map[domain.ConnectionID]uint64
}

func NewDeliveryDroppedHandler(log *slog.Logger) *DeliveryDroppedHandler {
	return &DeliveryDroppedHandler{
		log:   log,
		drops: make(map[domain.ConnectionID]uint64),
	}
}

func (h *DeliveryDroppedHandler) Handle(event Event) {
	if event.Type != DeliveryDroppedType {
		return
	}
	payload, ok := event.Payload.(DeliveryDropped)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}

	h.mu.Lock()
	h.counter++
	h.drops[payload.Connection]++
	count := h.drops[payload.Connection]
	h.mu.Unlock()

	h.log.Warn("delivery degraded",
		"room_id", payload.Room,
		"connection_id", payload.Connection,
		"message_id", payload.MessageID,
		"drops_for_connection", count)
}

// Dropped reports the total number of evicted frames so far.
func (h *DeliveryDroppedHandler) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counter
}
