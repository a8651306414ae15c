package search

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/blugelabs/bluge"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

var _ contract.EventSink = (*MessageIndex)(nil)

// MessageIndex is a permanent fan-out sink feeding every accepted
// message into a Bluge full-text index. Indexing is best-effort and
// sits outside the durability path: the badger log remains the source
// of truth, the index only serves search queries.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Consume indexes the message body under its room. Non-message events
// are ignored.
func (i *MessageIndex) Consume(ctx context.Context, e event.DomainEvent) error {
	accepted, ok := e.(event.MessageAccepted)
	if !ok {
		return nil
	}

	message := accepted.Message
	docID := docID(message.Room, message.ID)
	doc := bluge.NewDocument(docID).
		AddField(bluge.NewKeywordField("room", string(message.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("author", message.AuthorID).StoreValue()).
		AddField(bluge.NewKeywordField("message_id", strconv.FormatUint(uint64(message.ID), 10)).StoreValue()).
		AddField(bluge.NewTextField("body", message.Body).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		i.log.Error("indexing failed", "room_id", message.Room, "message_id", message.ID, "error", err)
		return err
	}
	return nil
}

// Result is one search hit, hydrated entirely from stored fields.
type Result struct {
	MessageID domain.MessageID
	Room      domain.RoomID
	AuthorID  string
	Body      string
}

// Search runs a full-text query over one room's messages and returns
// the best matches plus the total hit count.
func (i *MessageIndex) Search(ctx context.Context, room domain.RoomID, query string, limit int) ([]Result, uint64, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body")).
		AddMust(bluge.NewTermQuery(string(room)).SetField("room"))

	request := bluge.NewTopNSearch(limit, q).WithStandardAggregations()
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var results []Result
	match, err := iterator.Next()
	for err == nil && match != nil {
		var result Result
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "room":
				result.Room = domain.RoomID(value)
			case "author":
				result.AuthorID = string(value)
			case "body":
				result.Body = string(value)
			case "message_id":
				if id, parseErr := strconv.ParseUint(string(value), 10, 64); parseErr == nil {
					result.MessageID = domain.MessageID(id)
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		results = append(results, result)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	return results, iterator.Aggregations().Count(), nil
}

func docID(room domain.RoomID, id domain.MessageID) string {
	return string(room) + "/" + strconv.FormatUint(uint64(id), 10)
}
