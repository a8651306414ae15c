package event

// Handler consumes telemetry events. Handlers must be fast and never
// block, the telemetry worker runs them inline.
type Handler interface {
	Handle(e Event)
}
