package event

import (
	"time"

	"chat-relay/domain"
)

type Type string

const (
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	DeliveryDroppedType     Type = "DELIVERY_DROPPED"
	ProcessHealthType       Type = "PROCESS_HEALTH"
	MessageFlowType         Type = "MESSAGE_FLOW"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
)

// Event is the telemetry envelope. Telemetry is sampled and best-effort:
// losing one of these is acceptable, losing a domain event is not.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

// DeliveryDropped reports a frame evicted from one connection's outbound
// queue under backpressure. The recipient only ever sees the gap, which
// is recoverable through the history service.
type DeliveryDropped struct {
	Room       domain.RoomID
	Connection domain.ConnectionID
	MessageID  domain.MessageID
}

type ProcessHealth struct {
	PID    int32
	Status string
	Cpu    float64
	Ram    float32
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}
