package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/domain/event"
)

// HealthWorker samples the server process itself (CPU, RAM, status)
// and feeds the readings into the telemetry stream.
type HealthWorker struct {
	log            *slog.Logger
	telemetryChan  chan event.Event
	metricInterval time.Duration
}

func NewHealthWorker(log *slog.Logger, telemetryChan chan event.Event,
	metricInterval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, telemetryChan: telemetryChan, metricInterval: metricInterval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			status, err := p.Status()
			if err != nil {
				w.log.Error("Error while finding process status", "err", err)
				continue
			}
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := p.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case w.telemetryChan <- toHealthEvent(p.Pid, status, cpu, ram):
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

func toHealthEvent(pid int32, status string, cpu float64, ram float32) event.Event {
	return event.Event{
		Type:      event.ProcessHealthType,
		CreatedAt: time.Now().UTC(),
		Payload: event.ProcessHealth{
			PID:    pid,
			Status: status,
			Cpu:    cpu,
			Ram:    ram,
		},
	}
}
