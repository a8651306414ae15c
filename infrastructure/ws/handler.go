package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/services"
)

// Handler terminates `GET /ws/{room}`. Authentication and the read
// permission are settled before the upgrade: a rejected client never
// touches the room registry and never costs a websocket.
type Handler struct {
	gate       *auth.Gate
	authorizer contract.Authorizer
	chat       services.IChatService
	history    services.IHistoryService
	upgrader   websocket.Upgrader
	sinkSize   int
	replaySize int
	maxLength  int
	log        *slog.Logger
}

func NewHandler(
	gate *auth.Gate,
	authorizer contract.Authorizer,
	chat services.IChatService,
	history services.IHistoryService,
	sinkSize, replaySize, maxLength int,
	log *slog.Logger) *Handler {
	return &Handler{
		gate:       gate,
		authorizer: authorizer,
		chat:       chat,
		history:    history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sinkSize:   sinkSize,
		replaySize: replaySize,
		maxLength:  maxLength,
		log:        log,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{room}", h.serve)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomFromPath(r)
	if !ok {
		http.Error(w, "invalid room", http.StatusBadRequest)
		return
	}

	identity, err := h.gate.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		h.log.Info("authentication rejected", "room_id", roomID, "error", err)
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if !h.authorizer.CanRead(identity, roomID) {
		h.log.Info("room access denied", "room_id", roomID, "user_id", identity.UserID, "role", identity.Role)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade failed", "room_id", roomID, "error", err)
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	sink := NewSink(connID, h.sinkSize)
	canPost := h.authorizer.CanPost(identity, roomID)
	connection := NewConnection(connID, roomID, identity, conn, sink, h.chat, canPost, h.maxLength, h.log)

	// Join first so no message accepted from now on can be missed, then
	// prime the socket with recent history. A message arriving in that
	// window may show up twice; clients dedupe on the message ID.
	h.chat.JoinRoom(connID, roomID, sink)
	h.replay(connection, roomID)

	h.log.Info("connection established",
		"connection_id", connID,
		"room_id", roomID,
		"user_id", identity.UserID,
		"role", identity.Role)

	// The upgraded socket outlives this handler; the request context
	// dies when serve returns, so the pumps run detached from it.
	go connection.Run(context.Background())
}

func (h *Handler) replay(connection *Connection, roomID domain.RoomID) {
	messages, err := h.history.Replay(roomID, h.replaySize)
	if err != nil {
		h.log.Error("history replay failed", "room_id", roomID, "error", err)
		return
	}
	raw, err := json.Marshal(toHistoryFrame(messages))
	if err != nil {
		h.log.Error("marshaling history frame", "room_id", roomID, "error", err)
		return
	}
	connection.control <- raw
}

// roomFromPath extracts and validates the room segment. The colon is
// reserved as the store's key separator and never valid in a room ID.
func roomFromPath(r *http.Request) (domain.RoomID, bool) {
	room := r.PathValue("room")
	if room == "" || len(room) > 128 || strings.ContainsRune(room, ':') {
		return "", false
	}
	return domain.RoomID(room), true
}

// bearerToken accepts the credential from the Authorization header or,
// for browser clients that cannot set headers on websocket dials, the
// `token` query parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return r.URL.Query().Get("token")
}
