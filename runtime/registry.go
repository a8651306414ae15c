// Package runtime wires rooms, ingest workers, and fan-out together.
// It orchestrates the system without containing business logic or
// domain rules.
package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

type roomEntry struct {
	mu sync.Mutex
	// closed marks an evicted entry so a racing Subscribe retries
	// against a fresh one instead of writing into a dead set.
	closed bool
	sinks  map[domain.ConnectionID]contract.EventSink
}

// Registry maps room identifiers to the sinks of their active
// connections. Mutations of one room's set are serialized by that
// room's own lock; the registry lock only guards the room table, so
// traffic in one room never contends with another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomEntry
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]*roomEntry)}
}

// SinksForRoom returns a point-in-time copy of the room's active sinks,
// taken under the room's lock so it is consistent with joins and
// leaves. Returns nil if the room doesn't exist.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if len(entry.sinks) == 0 {
		return nil
	}
	snapshot := make([]contract.EventSink, 0, len(entry.sinks))
	for _, sink := range entry.sinks {
		snapshot = append(snapshot, sink)
	}
	return snapshot
}

// Subscribe registers a connection's sink under a room, creating the
// room entry if absent. Never fails for an admitted connection.
func (r *Registry) Subscribe(connID domain.ConnectionID, roomID domain.RoomID, sink contract.EventSink) {
	for {
		r.mu.RLock()
		entry := r.rooms[roomID]
		r.mu.RUnlock()

		if entry == nil {
			r.mu.Lock()
			entry = r.rooms[roomID]
			if entry == nil {
				entry = &roomEntry{sinks: make(map[domain.ConnectionID]contract.EventSink)}
				r.rooms[roomID] = entry
			}
			r.mu.Unlock()
		}

		entry.mu.Lock()
		if entry.closed {
			// Evicted between lookup and lock; retry with a fresh entry
			entry.mu.Unlock()
			continue
		}
		entry.sinks[connID] = sink
		entry.mu.Unlock()
		return
	}
}

// Unsubscribe removes the connection from the room and reports whether
// the room entry became empty and was evicted. Idempotent: a connection
// closing twice concurrently leaves the registry in the same terminal
// state.
func (r *Registry) Unsubscribe(connID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	delete(entry.sinks, connID)
	empty := len(entry.sinks) == 0 && !entry.closed
	if empty {
		entry.closed = true
	}
	entry.mu.Unlock()

	if empty {
		r.mu.Lock()
		if current := r.rooms[roomID]; current == entry {
			delete(r.rooms, roomID)
		}
		r.mu.Unlock()
	}
	return empty
}

// Size reports the number of active connections in a room.
func (r *Registry) Size(roomID domain.RoomID) int {
	r.mu.RLock()
	entry := r.rooms[roomID]
	r.mu.RUnlock()
	if entry == nil {
		return 0
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.sinks)
}

// Rooms reports the number of active room entries.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
