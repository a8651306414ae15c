package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

// MessageRepository persists room messages in BadgerDB.
//
// Keys are formatted as "msg:{room_id}:{message_id_padded}" so that a
// prefix scan yields messages in message ID order (19-digit zero padding
// keeps the lexicographical order aligned with the numeric one). The
// message ID is read-modify-written on "seq:{room_id}" inside the same
// transaction as the message itself, which is what makes the ID
// store-assigned: two authors racing to send see their relative order
// fixed by whichever append commits first.
//
// Appends for one room are serialized by that room's ingest worker, so
// the sequence key never sees a conflicting transaction.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID     uint64 `json:"id"`
	Room   string `json:"room"`
	Author string `json:"author"`
	Body   string `json:"body"`
	At     int64  `json:"at"`
}

func messageKey(room domain.RoomID, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", room, id))
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

func sequenceKey(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("seq:%s", room))
}

// Append makes the message durable and assigns its ID. On any backend
// failure the message is not persisted and the caller must not
// broadcast it.
func (m *MessageRepository) Append(room domain.RoomID, authorID, body string) (domain.Message, error) {
	message := domain.Message{
		Room:      room,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		next, err := nextSequence(txn, room)
		if err != nil {
			return err
		}
		message.ID = next

		bytes, err := json.Marshal(fromMessage(message))
		if err != nil {
			return err
		}
		if err := txn.Set(sequenceKey(room), []byte(fmt.Sprintf("%d", next))); err != nil {
			return err
		}
		return txn.Set(messageKey(room, next), bytes)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return message, nil
}

func nextSequence(txn *badger.Txn, room domain.RoomID) (domain.MessageID, error) {
	item, err := txn.Get(sequenceKey(room))
	if err == badger.ErrKeyNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	var current uint64
	err = item.Value(func(value []byte) error {
		_, err := fmt.Sscanf(string(value), "%d", &current)
		return err
	})
	if err != nil {
		return 0, err
	}
	return domain.MessageID(current + 1), nil
}

// ReadRange returns up to limit messages with ID strictly greater than
// cursor, ascending. A nil cursor means the start of history (forward
// pagination). The returned cursor is the last message ID of the page,
// or nil when the page came back short, meaning the end of available
// history at query time.
func (m *MessageRepository) ReadRange(room domain.RoomID, cursor *domain.MessageID, limit int) ([]domain.Message, *domain.MessageID, error) {
	if limit <= 0 {
		return nil, nil, nil
	}
	if cursor != nil && *cursor == math.MaxUint64 {
		// cursor+1 would wrap to the start of history; nothing can sit
		// beyond the highest representable ID, so the page is empty.
		return nil, nil, nil
	}
	var messages []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			// Exclusive lower bound: seek to the first key after the cursor
			seekKey = messageKey(room, *cursor+1)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(dm))
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	if len(messages) < limit {
		return messages, nil, nil
	}
	next := messages[len(messages)-1].ID
	return messages, &next, nil
}

// ReadLatest returns the most recent limit messages of a room in
// ascending order. Used for the history replay a freshly joined
// connection receives before live delivery begins.
func (m *MessageRepository) ReadLatest(room domain.RoomID, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var messages []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the highest possible padded ID, then walk backwards
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toMessage(dm))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	// Reverse in place back to ascending ID order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:     uint64(message.ID),
		Room:   string(message.Room),
		Author: message.AuthorID,
		Body:   message.Body,
		At:     message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(dm.ID),
		Room:      domain.RoomID(dm.Room),
		AuthorID:  dm.Author,
		Body:      dm.Body,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}
}
