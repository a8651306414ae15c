package event

import (
	"log/slog"
	"time"
)

type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(e Event) {
	if e.Type != MessageFlowType {
		return
	}
	if payload, ok := e.Payload.(MessageAccepted); ok {
		leadTime := time.Since(payload.Message.CreatedAt)

		h.log.Debug("telemetry: ingest-to-fanout latency",
			"room_id", payload.Message.Room,
			"author", payload.Message.AuthorID,
			"lead_time_ms", leadTime.Milliseconds(),
		)

		if leadTime > h.latencyThreshold {
			h.log.Warn("high latency detected", "lead_time", leadTime)
		}
	}
}
