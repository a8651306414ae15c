package errors

import (
	"fmt"

	"chat-relay/domain"
)

var (
	// ErrUnauthenticated rejects a connection before any room admission.
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	// ErrForbidden rejects an action for an authenticated identity; the
	// connection itself stays open.
	ErrForbidden = fmt.Errorf("forbidden")
	// ErrPersistenceFailed is reported to a sender whose message could not
	// be made durable. The message is never broadcast in that case.
	ErrPersistenceFailed = fmt.Errorf("persistence failed")
	// ErrStoreUnavailable surfaces a failing history read as retryable.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	// ErrDeliveryDropped reports that a frame was evicted from one
	// connection's outbound queue under the drop-oldest policy.
	ErrDeliveryDropped = fmt.Errorf("delivery dropped")

	ErrEmptyBody      = fmt.Errorf("empty message body")
	ErrBodyTooLong    = fmt.Errorf("message body too long")
	ErrRoomInactive   = fmt.Errorf("room has no active ingest worker")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInvalidPayload = fmt.Errorf("invalid event payload")
	ErrEmptyWords     = fmt.Errorf("no words have been found")
)

// DroppedDeliveryError identifies which connection's queue evicted a
// frame, so fan-out can attribute the drop in telemetry.
type DroppedDeliveryError struct {
	Connection domain.ConnectionID
}

func (e *DroppedDeliveryError) Error() string {
	return fmt.Sprintf("%v: connection %s", ErrDeliveryDropped, e.Connection)
}

func (e *DroppedDeliveryError) Unwrap() error {
	return ErrDeliveryDropped
}
