package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
)

type fakeStore struct {
	mu       sync.Mutex
	next     domain.MessageID
	appended []domain.Message
	err      error
}

func (s *fakeStore) Append(room domain.RoomID, authorID, body string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Message{}, s.err
	}
	s.next++
	msg := domain.Message{
		ID:        s.next,
		Room:      room,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	s.appended = append(s.appended, msg)
	return msg, nil
}

func (s *fakeStore) ReadRange(room domain.RoomID, cursor *domain.MessageID, limit int) ([]domain.Message, *domain.MessageID, error) {
	return nil, nil, nil
}

func (s *fakeStore) ReadLatest(room domain.RoomID, limit int) ([]domain.Message, error) {
	return nil, nil
}

func newTestModerator(t *testing.T) *moderation.Moderator {
	t.Helper()
	data, err := moderation.LoadCensoredWords()
	require.NoError(t, err)
	moderator, err := moderation.NewModerator(data.Words, '*')
	require.NoError(t, err)
	return &moderator
}

func TestRoomWorker_Acknowledges_And_Emits(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	commands := make(chan domain.Command, 1)
	events := make(chan event.DomainEvent, 1)
	worker := NewRoomWorker("r1", commands, events, store, newTestModerator(t), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	// When a valid message command is dispatched
	result := make(chan domain.PostResult, 1)
	commands <- domain.PostMessageCommand{
		Room:      "r1",
		AuthorID:  "alice",
		Body:      "hello world",
		CreatedAt: time.Now().UTC(),
		Result:    result,
	}

	// Then the sender gets an acknowledgement carrying the assigned ID
	select {
	case res := <-result:
		req.NoError(res.Err)
		req.Equal(domain.MessageID(1), res.Message.ID)
		req.Equal("hello world", res.Message.Body)
	case <-time.After(time.Second):
		t.Fatal("no acknowledgement received")
	}

	// And the accepted event reaches the fan-out stream
	select {
	case evt := <-events:
		accepted, ok := evt.(event.MessageAccepted)
		req.True(ok)
		req.Equal(domain.MessageID(1), accepted.Message.ID)
		req.Equal(domain.RoomID("r1"), accepted.Message.Room)
	case <-time.After(time.Second):
		t.Fatal("no accepted event emitted")
	}

	cancel()
	<-done
}

func TestRoomWorker_Persistence_Failure_Suppresses_Broadcast(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{err: errors.ErrStoreUnavailable}
	commands := make(chan domain.Command, 1)
	events := make(chan event.DomainEvent, 1)
	worker := NewRoomWorker("r1", commands, events, store, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	result := make(chan domain.PostResult, 1)
	commands <- domain.PostMessageCommand{Room: "r1", AuthorID: "alice", Body: "hi", Result: result}

	// Then the sender is told the message was not accepted
	select {
	case res := <-result:
		req.ErrorIs(res.Err, errors.ErrPersistenceFailed)
	case <-time.After(time.Second):
		t.Fatal("no rejection received")
	}

	// And nothing is broadcast
	select {
	case <-events:
		t.Fatal("rejected message must not be broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomWorker_Censors_Before_Durability(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	commands := make(chan domain.Command, 1)
	events := make(chan event.DomainEvent, 1)
	worker := NewRoomWorker("r1", commands, events, store, newTestModerator(t), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	result := make(chan domain.PostResult, 1)
	commands <- domain.PostMessageCommand{Room: "r1", AuthorID: "bob", Body: "you are an idiot", Result: result}

	select {
	case res := <-result:
		req.NoError(res.Err)
		req.NotContains(res.Message.Body, "idiot")
	case <-time.After(time.Second):
		t.Fatal("no acknowledgement received")
	}

	// The stored body is the censored one: readers of history see the
	// exact bytes that were broadcast.
	store.mu.Lock()
	defer store.mu.Unlock()
	req.Len(store.appended, 1)
	req.NotContains(store.appended[0].Body, "idiot")
}

func TestRoomWorker_Serializes_Message_Order(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	commands := make(chan domain.Command, 16)
	events := make(chan event.DomainEvent, 16)
	worker := NewRoomWorker("r1", commands, events, store, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When several messages are queued back to back
	for i := 0; i < 5; i++ {
		commands <- domain.PostMessageCommand{Room: "r1", AuthorID: "alice", Body: "m"}
	}

	// Then accepted events come out with strictly increasing IDs,
	// matching the order the store assigned them
	var previous domain.MessageID
	for i := 0; i < 5; i++ {
		select {
		case evt := <-events:
			accepted := evt.(event.MessageAccepted)
			req.Greater(accepted.Message.ID, previous)
			previous = accepted.Message.ID
		case <-time.After(time.Second):
			t.Fatal("missing accepted event")
		}
	}
}
