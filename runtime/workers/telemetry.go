package workers

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker drains the telemetry channel and dispatches each
// event to every registered handler. Handlers run inline and must not
// block.
type TelemetryWorker struct {
	log       *slog.Logger
	telemetry chan event.Event
	handlers  []event.Handler
}

func NewTelemetryWorker(log *slog.Logger, telemetry chan event.Event, handlers ...event.Handler) *TelemetryWorker {
	return &TelemetryWorker{log: log, telemetry: telemetry, handlers: handlers}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry dispatch")
			return nil
		case evt, ok := <-w.telemetry:
			if !ok {
				return nil
			}
			for _, handler := range w.handlers {
				handler.Handle(evt)
			}
		}
	}
}
