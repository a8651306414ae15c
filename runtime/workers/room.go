package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
)

// Ensure *RoomWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker is the single ingest point of one room. It serializes the
// durability step, so the order in which the store assigns message IDs
// is exactly the order accepted events reach the fan-out stage: no
// global lock, one worker per active room.
type RoomWorker struct {
	room      domain.RoomID
	commands  chan domain.Command
	events    chan event.DomainEvent
	store     contract.IMessageStore
	moderator *moderation.Moderator
	log       *slog.Logger
}

func NewRoomWorker(
	room domain.RoomID,
	commands chan domain.Command,
	events chan event.DomainEvent,
	store contract.IMessageStore,
	moderator *moderation.Moderator,
	log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:      room,
		commands:  commands,
		events:    events,
		store:     store,
		moderator: moderator,
		log:       log,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker", "room_id", w.room)
			return nil
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed", "room_id", w.room)
				return nil
			}
			if postCmd, ok := cmd.(domain.PostMessageCommand); ok {
				if err := w.handlePost(ctx, postCmd); err != nil {
					return err
				}
			}
		}
	}
}

func (w *RoomWorker) handlePost(ctx context.Context, cmd domain.PostMessageCommand) error {
	info := whatlanggo.Detect(cmd.Body)
	lang := info.Lang.Iso6391()

	body := cmd.Body
	var censored []string
	if w.moderator != nil {
		body, censored = w.moderator.Censor(cmd.Body)
	}
	if len(censored) > 0 {
		w.log.Info("message censored",
			"room_id", w.room,
			"author", cmd.AuthorID,
			"lang", lang,
			"hits", len(censored))
	}

	// Durability first. On failure the sender is told and nothing is
	// broadcast: no delivery without durability.
	message, err := w.store.Append(w.room, cmd.AuthorID, body)
	if err != nil {
		w.log.Error("append failed", "room_id", w.room, "error", err)
		w.reply(cmd, domain.PostResult{Err: fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)})
		return nil
	}

	w.reply(cmd, domain.PostResult{Message: message})

	select {
	case <-ctx.Done():
		return nil
	case w.events <- event.MessageAccepted{Message: message, Lang: lang, CensoredWords: censored}:
	}
	return nil
}

// reply never blocks: Result is buffered and a sender that already gave
// up simply misses its acknowledgement.
func (w *RoomWorker) reply(cmd domain.PostMessageCommand, result domain.PostResult) {
	if cmd.Result == nil {
		return
	}
	select {
	case cmd.Result <- result:
	default:
		w.log.Debug("sender abandoned its acknowledgement", "room_id", w.room, "author", cmd.AuthorID)
	}
}
