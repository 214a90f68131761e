package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chatwire/domain"
	"chatwire/errors"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newConversationRepo(t *testing.T) *ConversationRepository {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	return NewConversationRepository(newTestDB(t), log)
}

func newMessage(author, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		AuthorID:  author,
		Text:      text,
		CreatedAt: at,
	}
}

func TestConversationRepository_FindOrCreate(t *testing.T) {
	t.Run("should return the same conversation regardless of participant order", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		first, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)

		second, err := repo.FindOrCreate("bob", "alice")
		req.NoError(err)

		req.Equal(first.Pair, second.Pair)
		req.True(first.CreatedAt.Equal(second.CreatedAt))
	})

	t.Run("should create exactly one conversation under concurrency", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		const racers = 20
		results := make([]domain.Conversation, racers)
		failures := make([]error, racers)

		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				// Half the racers use the reversed order.
				if n%2 == 0 {
					results[n], failures[n] = repo.FindOrCreate("alice", "bob")
					return
				}
				results[n], failures[n] = repo.FindOrCreate("bob", "alice")
			}(i)
		}
		wg.Wait()

		for i := 0; i < racers; i++ {
			req.NoError(failures[i])
			req.True(results[0].CreatedAt.Equal(results[i].CreatedAt))
			req.Equal(results[0].Pair, results[i].Pair)
		}
	})

	t.Run("should reject invalid pairs", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		_, err := repo.FindOrCreate("alice", "alice")
		req.ErrorIs(err, errors.ErrSameParticipant)

		_, err = repo.FindOrCreate("", "bob")
		req.ErrorIs(err, errors.ErrEmptyParticipant)
	})
}

func TestConversationRepository_Thread(t *testing.T) {
	t.Run("should load messages oldest first", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		conv, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)

		base := time.Now().UTC()
		for i := 0; i < 5; i++ {
			msg := newMessage("alice", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Second))
			req.NoError(repo.AppendMessage(conv.Pair, msg))
		}

		thread, err := repo.LoadThread(conv.Pair)
		req.NoError(err)
		req.Len(thread, 5)
		for i, msg := range thread {
			req.Equal(fmt.Sprintf("message %d", i), msg.Text)
		}
	})

	t.Run("should return an empty thread for a fresh conversation", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		conv, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)

		thread, err := repo.LoadThread(conv.Pair)
		req.NoError(err)
		req.Empty(thread)
	})

	t.Run("should refuse to append to a missing conversation", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		pair, err := domain.NewPair("alice", "bob")
		req.NoError(err)

		err = repo.AppendMessage(pair, newMessage("alice", "hello", time.Now().UTC()))
		req.ErrorIs(err, errors.ErrConversationNotFound)
	})

	t.Run("should bump last activity when appending", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		conv, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)

		later := conv.LastActivityAt.Add(time.Hour)
		req.NoError(repo.AppendMessage(conv.Pair, newMessage("alice", "hello", later)))

		refreshed, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)
		req.True(refreshed.LastActivityAt.Equal(later))
	})
}

func TestConversationRepository_MarkSeen(t *testing.T) {
	t.Run("should flip only messages authored by the other participant", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		conv, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)

		base := time.Now().UTC()
		req.NoError(repo.AppendMessage(conv.Pair, newMessage("bob", "hi", base)))
		req.NoError(repo.AppendMessage(conv.Pair, newMessage("bob", "you there?", base.Add(time.Second))))
		req.NoError(repo.AppendMessage(conv.Pair, newMessage("alice", "yes", base.Add(2*time.Second))))

		// Alice acknowledges Bob's messages.
		flipped, err := repo.MarkSeen("alice", "bob")
		req.NoError(err)
		req.Equal(2, flipped)

		thread, err := repo.LoadThread(conv.Pair)
		req.NoError(err)
		req.True(thread[0].Seen)
		req.True(thread[1].Seen)
		req.False(thread[2].Seen)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		conv, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)
		req.NoError(repo.AppendMessage(conv.Pair, newMessage("bob", "hi", time.Now().UTC())))

		flipped, err := repo.MarkSeen("alice", "bob")
		req.NoError(err)
		req.Equal(1, flipped)

		flipped, err = repo.MarkSeen("alice", "bob")
		req.NoError(err)
		req.Zero(flipped)
	})

	t.Run("should no-op when no conversation exists", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		flipped, err := repo.MarkSeen("alice", "bob")
		req.NoError(err)
		req.Zero(flipped)
	})
}

func TestConversationRepository_ListThreads(t *testing.T) {
	t.Run("should order by last activity and count unseen peer messages", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		base := time.Now().UTC()

		withBob, err := repo.FindOrCreate("alice", "bob")
		req.NoError(err)
		req.NoError(repo.AppendMessage(withBob.Pair, newMessage("bob", "old news", base)))

		withCarol, err := repo.FindOrCreate("alice", "carol")
		req.NoError(err)
		req.NoError(repo.AppendMessage(withCarol.Pair, newMessage("carol", "hi", base.Add(time.Minute))))
		req.NoError(repo.AppendMessage(withCarol.Pair, newMessage("carol", "hello?", base.Add(2*time.Minute))))
		req.NoError(repo.AppendMessage(withCarol.Pair, newMessage("alice", "hey", base.Add(3*time.Minute))))

		records, err := repo.ListThreads("alice")
		req.NoError(err)
		req.Len(records, 2)

		// Carol's thread is fresher and carries two unseen messages.
		req.Equal("carol", records[0].Conversation.Pair.Other("alice"))
		req.Equal(2, records[0].Unseen)
		req.NotNil(records[0].LastMessage)
		req.Equal("hey", records[0].LastMessage.Text)

		req.Equal("bob", records[1].Conversation.Pair.Other("alice"))
		req.Equal(1, records[1].Unseen)

		// Bob only counts Alice's unseen messages, of which there are none.
		bobRecords, err := repo.ListThreads("bob")
		req.NoError(err)
		req.Len(bobRecords, 1)
		req.Zero(bobRecords[0].Unseen)
	})

	t.Run("should return nothing for a user without conversations", func(t *testing.T) {
		req := require.New(t)
		repo := newConversationRepo(t)

		records, err := repo.ListThreads("loner")
		req.NoError(err)
		req.Empty(records)
	})
}
