package services

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

var validate = validator.New()

// HistoryQuery is one page request against a room's durable log.
// Room IDs must not contain the key separator used by the store.
type HistoryQuery struct {
	Room   string `validate:"required,max=128,excludesall=:"`
	Cursor *domain.MessageID
	Limit  int
}

type IHistoryService interface {
	GetMessages(query HistoryQuery) ([]domain.Message, *domain.MessageID, error)
	Replay(room domain.RoomID, limit int) ([]domain.Message, error)
}

// HistoryService reads pages of past messages out of the durable log.
// It never touches live fan-out state: history is served even for rooms
// with no active connection.
type HistoryService struct {
	store           contract.IMessageStore
	defaultPageSize int
	maxPageSize     int
	log             *slog.Logger
}

func NewHistoryService(store contract.IMessageStore, defaultPageSize, maxPageSize int, log *slog.Logger) *HistoryService {
	return &HistoryService{
		store:           store,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// GetMessages returns one ascending page starting after the cursor; a
// nil cursor starts from the beginning of the room's history. The
// returned cursor is nil when the log is exhausted.
func (s *HistoryService) GetMessages(query HistoryQuery) ([]domain.Message, *domain.MessageID, error) {
	if err := validate.Struct(query); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	limit := s.clamp(query.Limit)
	messages, next, err := s.store.ReadRange(domain.RoomID(query.Room), query.Cursor, limit)
	if err != nil {
		s.log.Error("history read failed", "room_id", query.Room, "error", err)
		return nil, nil, err
	}
	return messages, next, nil
}

// Replay returns the most recent messages of a room in ascending order,
// used to prime a connection right after it joins.
func (s *HistoryService) Replay(room domain.RoomID, limit int) ([]domain.Message, error) {
	return s.store.ReadLatest(room, s.clamp(limit))
}

func (s *HistoryService) clamp(limit int) int {
	if limit <= 0 {
		return s.defaultPageSize
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}
