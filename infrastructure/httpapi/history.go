package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/search"
	"chat-relay/services"
)

// Stats is the read-only runtime view exposed on the health endpoint.
type Stats interface {
	ActiveRooms() int
}

// Handler serves the REST side of the system: paginated history,
// full-text search and the health probe. Reads go through the same
// credential gate and RBAC policy as the websocket side.
type Handler struct {
	gate       *auth.Gate
	authorizer contract.Authorizer
	history    services.IHistoryService
	index      *search.MessageIndex
	stats      Stats
	log        *slog.Logger
}

func NewHandler(
	gate *auth.Gate,
	authorizer contract.Authorizer,
	history services.IHistoryService,
	index *search.MessageIndex,
	stats Stats,
	log *slog.Logger) *Handler {
	return &Handler{
		gate:       gate,
		authorizer: authorizer,
		history:    history,
		index:      index,
		stats:      stats,
		log:        log,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /rooms/{room}/messages", h.authenticated(h.getMessages))
	mux.HandleFunc("GET /rooms/{room}/search", h.authenticated(h.searchMessages))
	mux.HandleFunc("GET /healthz", h.healthz)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, identity domain.Identity, room domain.RoomID)

// authenticated settles the credential and the read permission before
// the wrapped handler runs.
func (h *Handler) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := domain.RoomID(r.PathValue("room"))

		identity, err := h.gate.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if !h.authorizer.CanRead(identity, room) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, identity, room)
	}
}

type messagePayload struct {
	ID       domain.MessageID `json:"id"`
	Room     domain.RoomID    `json:"room"`
	AuthorID string           `json:"author_id"`
	Body     string           `json:"body"`
	At       time.Time        `json:"at"`
}

type messagesResponse struct {
	Messages   []messagePayload  `json:"messages"`
	NextCursor *domain.MessageID `json:"next_cursor"`
}

func (h *Handler) getMessages(w http.ResponseWriter, r *http.Request, _ domain.Identity, room domain.RoomID) {
	cursor, ok := parseCursor(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	messages, next, err := h.history.GetMessages(services.HistoryQuery{
		Room:   string(room),
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		h.writeHistoryError(w, room, err)
		return
	}

	payloads := make([]messagePayload, len(messages))
	for i, m := range messages {
		payloads[i] = toMessagePayload(m)
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: payloads, NextCursor: next})
}

func (h *Handler) writeHistoryError(w http.ResponseWriter, room domain.RoomID, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "invalid query")
	case stderrors.Is(err, errors.ErrStoreUnavailable):
		h.log.Error("history unavailable", "room_id", room, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.log.Error("history read failed", "room_id", room, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type searchResponse struct {
	Results []searchHit `json:"results"`
	Total   uint64      `json:"total"`
}

type searchHit struct {
	MessageID domain.MessageID `json:"message_id"`
	Room      domain.RoomID    `json:"room"`
	AuthorID  string           `json:"author_id"`
	Body      string           `json:"body"`
}

func (h *Handler) searchMessages(w http.ResponseWriter, r *http.Request, _ domain.Identity, room domain.RoomID) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit <= 0 {
		limit = 20
	}

	results, total, err := h.index.Search(r.Context(), room, query, limit)
	if err != nil {
		h.log.Error("search failed", "room_id", room, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	hits := make([]searchHit, len(results))
	for i, result := range results {
		hits[i] = searchHit{
			MessageID: result.MessageID,
			Room:      result.Room,
			AuthorID:  result.AuthorID,
			Body:      result.Body,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: hits, Total: total})
}

type healthResponse struct {
	Status      string `json:"status"`
	ActiveRooms int    `json:"active_rooms"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ActiveRooms: h.stats.ActiveRooms(),
	})
}

func toMessagePayload(m domain.Message) messagePayload {
	return messagePayload{
		ID:       m.ID,
		Room:     m.Room,
		AuthorID: m.AuthorID,
		Body:     m.Body,
		At:       m.CreatedAt,
	}
}

func parseCursor(r *http.Request) (*domain.MessageID, bool) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	cursor := domain.MessageID(value)
	return &cursor, true
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
