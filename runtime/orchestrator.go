package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/runtime/workers"
)

type roomHandle struct {
	commands chan domain.Command
	cancel   context.CancelFunc
}

// Orchestrator owns room lifecycle: one ingest worker per active room,
// spawned on first join and torn down when the registry evicts the
// room. It is constructed explicitly at server start and drained on
// shutdown; nothing here is ambient global state.
type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	registry       contract.IRegistry
	store          contract.IMessageStore
	moderator      *moderation.Moderator
	supervisor     contract.ISupervisor
	events         chan event.DomainEvent
	telemetry      chan event.Event
	rooms          map[domain.RoomID]*roomHandle
	roomBufferSize int
	permanentSinks []contract.EventSink
	baseCtx        context.Context
}

func NewOrchestrator(log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	store contract.IMessageStore,
	moderator *moderation.Moderator,
	events chan event.DomainEvent,
	telemetry chan event.Event,
	roomBufferSize int) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		store:          store,
		moderator:      moderator,
		events:         events,
		telemetry:      telemetry,
		rooms:          make(map[domain.RoomID]*roomHandle),
		roomBufferSize: roomBufferSize,
	}
}

// AddSinks registers permanent fan-out sinks (search index,
// projections). Must be called before Start.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start wires the fan-out worker and runs the supervisor. It blocks
// until Stop is called or the context is canceled.
func (o *Orchestrator) Start(ctx context.Context) error {
	fanout := workers.NewFanoutWorker(o.log, o.registry, o.events, o.telemetry, o.permanentSinks...)

	o.mu.Lock()
	o.baseCtx = ctx
	o.supervisor.Add(fanout)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// JoinRoom admits an already-authenticated connection: registers its
// sink and makes sure the room has a live ingest worker.
func (o *Orchestrator) JoinRoom(connID domain.ConnectionID, roomID domain.RoomID, sink contract.EventSink) {
	o.registry.Subscribe(connID, roomID, sink)
	o.ensureRoomWorker(roomID)
}

// LeaveRoom removes the connection; when the room's active set becomes
// empty its ingest worker is stopped and the in-memory entry is gone.
// Idempotent.
func (o *Orchestrator) LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID) {
	if !o.registry.Unsubscribe(connID, roomID) {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// A join racing this eviction may have re-subscribed into a fresh
	// registry entry between Unsubscribe and here; its ensureRoomWorker
	// would find the old handle and skip spawning, so the worker has to
	// survive whenever the room has members again.
	if len(o.registry.SinksForRoom(roomID)) > 0 {
		return
	}

	handle, ok := o.rooms[roomID]
	if !ok {
		return
	}
	delete(o.rooms, roomID)
	handle.cancel()
	o.log.Debug("room evicted", "room_id", roomID)
}

// PostMessage dispatches to the room's ingest worker and waits for the
// per-message acknowledgement or rejection.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	o.mu.Lock()
	handle, ok := o.rooms[cmd.Room]
	o.mu.Unlock()
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrRoomInactive, cmd.Room)
	}

	if cmd.Result == nil {
		cmd.Result = make(chan domain.PostResult, 1)
	}

	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case handle.commands <- cmd:
	}

	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case result := <-cmd.Result:
		return result.Message, result.Err
	}
}

func (o *Orchestrator) ensureRoomWorker(roomID domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.rooms[roomID]; ok {
		return
	}
	if o.baseCtx == nil {
		// Start was not called yet; workers would leak without a parent
		o.log.Error("orchestrator not started, cannot spawn room worker", "room_id", roomID)
		return
	}

	commands := make(chan domain.Command, o.roomBufferSize)
	roomCtx, cancel := context.WithCancel(o.baseCtx)
	worker := workers.NewRoomWorker(roomID, commands, o.events, o.store, o.moderator, o.log)
	o.supervisor.Start(roomCtx, worker)

	o.rooms[roomID] = &roomHandle{commands: commands, cancel: cancel}
	o.log.Debug("room worker started", "room_id", roomID)
}

// ActiveRooms reports how many ingest workers are currently live.
func (o *Orchestrator) ActiveRooms() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.rooms)
}

// Stop initiates a graceful shutdown: every worker, room ingest
// included, observes the supervised context being canceled.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")

	// Room workers run under per-room contexts so they can be torn down
	// individually; on shutdown every one of them is canceled explicitly.
	o.mu.Lock()
	for roomID, handle := range o.rooms {
		handle.cancel()
		delete(o.rooms, roomID)
	}
	o.mu.Unlock()

	o.supervisor.Stop()
}
