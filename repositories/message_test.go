package repositories

import (
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	options := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMessageRepository_Append_AssignsMonotonicIDs(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("r1")

	// When three messages are appended
	first, err := repo.Append(room, "alice", "hi")
	req.NoError(err)
	second, err := repo.Append(room, "bob", "hello")
	req.NoError(err)
	third, err := repo.Append(room, "alice", "how are you")
	req.NoError(err)

	// Then IDs start at 1 and strictly increase
	req.Equal(domain.MessageID(1), first.ID)
	req.Equal(domain.MessageID(2), second.ID)
	req.Equal(domain.MessageID(3), third.ID)
	req.False(first.CreatedAt.IsZero())
}

func TestMessageRepository_ReadRange_MatchesAppendOrder(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("general")

	var appended []domain.Message
	for i := 1; i <= 5; i++ {
		msg, err := repo.Append(room, fmt.Sprintf("user_%d", i), fmt.Sprintf("message %d", i))
		req.NoError(err)
		appended = append(appended, msg)
	}

	messages, next, err := repo.ReadRange(room, nil, 10)
	req.NoError(err)
	req.Equal(appended, messages)
	// Short page means end of history, so no continuation cursor
	req.Nil(next)

	ids := lo.Map(messages, func(m domain.Message, _ int) domain.MessageID { return m.ID })
	req.IsIncreasing(ids)
}

func TestMessageRepository_Pagination_ContiguousWithoutDuplicates(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("r42")

	for i := 1; i <= 10; i++ {
		_, err := repo.Append(room, "author", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	// --- Page 1 ---
	page1, cursor1, err := repo.ReadRange(room, nil, 4)
	req.NoError(err)
	req.Len(page1, 4)
	req.Equal(domain.MessageID(1), page1[0].ID)
	req.Equal(domain.MessageID(4), page1[3].ID)
	req.NotNil(cursor1)
	req.Equal(domain.MessageID(4), *cursor1)

	// --- Page 2 ---
	page2, cursor2, err := repo.ReadRange(room, cursor1, 4)
	req.NoError(err)
	req.Len(page2, 4)
	req.Equal(domain.MessageID(5), page2[0].ID)
	req.Equal(domain.MessageID(8), page2[3].ID)
	req.NotNil(cursor2)

	// --- Page 3 (end) ---
	page3, cursor3, err := repo.ReadRange(room, cursor2, 4)
	req.NoError(err)
	req.Len(page3, 2)
	req.Equal(domain.MessageID(9), page3[0].ID)
	req.Equal(domain.MessageID(10), page3[1].ID)
	req.Nil(cursor3)
}

func TestMessageRepository_ReadRange_CursorPastEnd(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("r1")

	_, err := repo.Append(room, "alice", "only one")
	req.NoError(err)

	cursor := domain.MessageID(99)
	messages, next, err := repo.ReadRange(room, &cursor, 5)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(next)
}

func TestMessageRepository_ReadRange_CursorAtMaxID(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("r1")

	_, err := repo.Append(room, "alice", "hello")
	req.NoError(err)

	// Given a cursor at the highest representable ID: incrementing it
	// must not wrap around to the start of history
	cursor := domain.MessageID(math.MaxUint64)
	messages, next, err := repo.ReadRange(room, &cursor, 5)
	req.NoError(err)
	req.Empty(messages)
	req.Nil(next)
}

func TestMessageRepository_RoomsAreIsolated(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	_, err := repo.Append("alpha", "alice", "in alpha")
	req.NoError(err)
	_, err = repo.Append("beta", "bob", "in beta")
	req.NoError(err)

	alpha, _, err := repo.ReadRange("alpha", nil, 10)
	req.NoError(err)
	req.Len(alpha, 1)
	req.Equal("in alpha", alpha[0].Body)
	// Each room owns its own sequence
	req.Equal(domain.MessageID(1), alpha[0].ID)

	beta, _, err := repo.ReadRange("beta", nil, 10)
	req.NoError(err)
	req.Len(beta, 1)
	req.Equal(domain.MessageID(1), beta[0].ID)
}

func TestMessageRepository_ReadLatest(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	room := domain.RoomID("replay")

	for i := 1; i <= 7; i++ {
		_, err := repo.Append(room, "author", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	latest, err := repo.ReadLatest(room, 3)
	req.NoError(err)
	req.Len(latest, 3)
	// Most recent page, ascending order
	req.Equal(domain.MessageID(5), latest[0].ID)
	req.Equal(domain.MessageID(7), latest[2].ID)
}

func TestMessageRepository_Append_AfterClose(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMessageRepository(db, slog.Default())

	req.NoError(db.Close())

	_, err := repo.Append("r1", "alice", "too late")
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
