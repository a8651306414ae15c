package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

type envelope struct {
	Type     string           `json:"type"`
	ID       domain.MessageID `json:"id"`
	Room     domain.RoomID    `json:"room"`
	AuthorID string           `json:"author_id"`
	Body     string           `json:"body"`
	Code     string           `json:"code"`
	Messages []messagePayload `json:"messages"`
}

type wsFixture struct {
	server *httptest.Server
	tokens *auth.TokenManager
}

func startStack(t *testing.T, store contract.IMessageStore, restrictedRooms []string) *wsFixture {
	t.Helper()
	log := slog.Default()
	telemetry := make(chan event.Event, 64)
	events := make(chan event.DomainEvent, 64)
	supervisor := workers.NewSupervisor(log, telemetry, 10*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(), store, nil, events, telemetry, 16)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orchestrator.Start(context.Background())
	}()

	// Wait until the orchestrator is accepting joins before any client
	// dials in.
	warmup := NewSink("warmup", 1)
	require.Eventually(t, func() bool {
		orchestrator.JoinRoom("warmup", "warmup", warmup)
		return orchestrator.ActiveRooms() > 0
	}, time.Second, 5*time.Millisecond)
	orchestrator.LeaveRoom("warmup", "warmup")

	tokens := auth.NewTokenManager("integration-secret", time.Hour)
	gate := auth.NewGate(tokens, time.Second, log)
	policy := auth.NewPolicy(restrictedRooms)
	chat := services.NewChatService(orchestrator)
	history := services.NewHistoryService(store, 50, 100, log)
	handler := NewHandler(gate, policy, chat, history, 32, 50, 1024, log)

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		orchestrator.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("orchestrator did not drain")
		}
	})
	return &wsFixture{server: server, tokens: tokens}
}

func openBadgerStore(t *testing.T) *repositories.MessageRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewMessageRepository(db, slog.Default())
}

func (f *wsFixture) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, err := f.tokens.Generate(userID, role)
	require.NoError(t, err)
	return token
}

func (f *wsFixture) dial(t *testing.T, room, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(room, token), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *wsFixture) wsURL(room, token string) string {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + room
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// collect keeps reading until `count` frames of the wanted type arrived,
// skipping everything else.
func collect(t *testing.T, conn *websocket.Conn, frameType string, count int) []envelope {
	t.Helper()
	var frames []envelope
	for len(frames) < count {
		env := readEnvelope(t, conn)
		if env.Type == frameType {
			frames = append(frames, env)
		}
	}
	return frames
}

func post(t *testing.T, conn *websocket.Conn, body string) {
	t.Helper()
	raw, err := json.Marshal(inboundFrame{Body: body})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestHandler_Broadcasts_To_Every_Member_In_Order(t *testing.T) {
	req := require.New(t)
	fixture := startStack(t, openBadgerStore(t), nil)
	sender := fixture.dial(t, "r1", fixture.token(t, "alice", domain.RoleUser))
	observer := fixture.dial(t, "r1", fixture.token(t, "root", domain.RoleAdmin))

	// Both members first receive the (empty) history replay
	req.Equal(frameTypeHistory, readEnvelope(t, sender).Type)
	req.Equal(frameTypeHistory, readEnvelope(t, observer).Type)

	// When the user posts two messages
	post(t, sender, "first")
	post(t, sender, "second")

	// Then the sender gets one ack per message plus both broadcast
	// copies; acks and messages may interleave on the wire
	var acks, echoed []envelope
	for len(acks) < 2 || len(echoed) < 2 {
		env := readEnvelope(t, sender)
		switch env.Type {
		case frameTypeAck:
			acks = append(acks, env)
		case frameTypeMessage:
			echoed = append(echoed, env)
		}
	}
	req.Equal(domain.MessageID(1), acks[0].ID)
	req.Equal(domain.MessageID(2), acks[1].ID)
	req.Equal(domain.MessageID(1), echoed[0].ID)
	req.Equal(domain.MessageID(2), echoed[1].ID)

	// And the other member sees both, in acceptance order
	messages := collect(t, observer, frameTypeMessage, 2)
	req.Equal(domain.MessageID(1), messages[0].ID)
	req.Equal("first", messages[0].Body)
	req.Equal("alice", messages[0].AuthorID)
	req.Equal(domain.MessageID(2), messages[1].ID)
	req.Equal("second", messages[1].Body)
}

func TestHandler_Handshake_Rejections(t *testing.T) {
	fixture := startStack(t, openBadgerStore(t), []string{"ops"})

	tests := []struct {
		description string
		room        string
		token       string
		wantStatus  int
	}{
		{"Missing token", "r1", "", http.StatusUnauthorized},
		{"Garbage token", "r1", "not-a-jwt", http.StatusUnauthorized},
		{"User locked out of restricted room", "ops", fixture.token(t, "alice", domain.RoleUser), http.StatusForbidden},
		{"Room with reserved separator", "a:b", fixture.token(t, "alice", domain.RoleUser), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			conn, resp, err := websocket.DefaultDialer.Dial(fixture.wsURL(tt.room, tt.token), nil)

			req.ErrorIs(err, websocket.ErrBadHandshake)
			req.Nil(conn)
			req.Equal(tt.wantStatus, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}

func TestHandler_Admin_Enters_Restricted_Room(t *testing.T) {
	req := require.New(t)
	fixture := startStack(t, openBadgerStore(t), []string{"ops"})

	conn := fixture.dial(t, "ops", fixture.token(t, "root", domain.RoleAdmin))

	req.Equal(frameTypeHistory, readEnvelope(t, conn).Type)
}

type brokenStore struct{}

func (brokenStore) Append(room domain.RoomID, authorID, body string) (domain.Message, error) {
	return domain.Message{}, errors.ErrStoreUnavailable
}

func (brokenStore) ReadRange(room domain.RoomID, cursor *domain.MessageID, limit int) ([]domain.Message, *domain.MessageID, error) {
	return nil, nil, nil
}

func (brokenStore) ReadLatest(room domain.RoomID, limit int) ([]domain.Message, error) {
	return nil, nil
}

func TestHandler_Persistence_Failure_Reaches_Sender_Only(t *testing.T) {
	req := require.New(t)
	fixture := startStack(t, brokenStore{}, nil)
	sender := fixture.dial(t, "r1", fixture.token(t, "alice", domain.RoleUser))
	observer := fixture.dial(t, "r1", fixture.token(t, "bob", domain.RoleUser))

	req.Equal(frameTypeHistory, readEnvelope(t, sender).Type)
	req.Equal(frameTypeHistory, readEnvelope(t, observer).Type)

	// When the durable append fails
	post(t, sender, "doomed")

	// Then the sender receives a typed rejection
	env := readEnvelope(t, sender)
	req.Equal(frameTypeError, env.Type)
	req.Equal(codePersistenceFailed, env.Code)

	// And the other member never sees the message
	req.NoError(observer.SetReadDeadline(time.Now().Add(150 * time.Millisecond)))
	_, _, err := observer.ReadMessage()
	req.Error(err)
}

func TestHandler_Rejects_Invalid_Frames(t *testing.T) {
	fixture := startStack(t, openBadgerStore(t), nil)
	conn := fixture.dial(t, "r1", fixture.token(t, "alice", domain.RoleUser))
	require.Equal(t, frameTypeHistory, readEnvelope(t, conn).Type)

	tests := []struct {
		description string
		raw         string
	}{
		{"Not JSON", "][such wow"},
		{"Empty body", `{"body":""}`},
		{"Whitespace body", `{"body":"   "}`},
		{"Oversized body", `{"body":"` + strings.Repeat("a", 1500) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			env := readEnvelope(t, conn)
			req.Equal(frameTypeError, env.Type)
			req.Equal(codeInvalidPayload, env.Code)
		})
	}
}

func TestHandler_Replays_History_On_Reconnect(t *testing.T) {
	req := require.New(t)
	store := openBadgerStore(t)
	fixture := startStack(t, store, nil)

	// Given a member posted two messages and disconnected
	first := fixture.dial(t, "r1", fixture.token(t, "alice", domain.RoleUser))
	req.Equal(frameTypeHistory, readEnvelope(t, first).Type)
	post(t, first, "hello")
	post(t, first, "goodbye")
	collect(t, first, frameTypeAck, 2)
	req.NoError(first.Close())

	// When a new connection joins the room
	second := fixture.dial(t, "r1", fixture.token(t, "bob", domain.RoleUser))

	// Then the replay carries the persisted conversation, oldest first
	env := readEnvelope(t, second)
	req.Equal(frameTypeHistory, env.Type)
	req.Len(env.Messages, 2)
	req.Equal(domain.MessageID(1), env.Messages[0].ID)
	req.Equal("hello", env.Messages[0].Body)
	req.Equal(domain.MessageID(2), env.Messages[1].ID)
	req.Equal("goodbye", env.Messages[1].Body)
}
