//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "chatwire/errors"

	"chatwire/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// maxConflictRetries bounds the optimistic-transaction retry loop.
// Badger aborts one of two overlapping read-write transactions with
// ErrConflict; the loser simply replays against the committed state.
const maxConflictRetries = 10

type IConversationRepository interface {
	FindOrCreate(a, b string) (domain.Conversation, error)
	AppendMessage(pair domain.Pair, msg domain.Message) error
	LoadThread(pair domain.Pair) ([]domain.Message, error)
	ListThreads(userID string) ([]ThreadRecord, error)
	MarkSeen(viewerID, otherID string) (int, error)
}

// ThreadRecord is one conversation of a user together with the derived
// sidebar fields the store can compute on its own. Peer display data
// and presence are layered on top by the service.
type ThreadRecord struct {
	Conversation domain.Conversation
	LastMessage  *domain.Message
	Unseen       int
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, log: log}
}

// Key layout. Message keys embed a 19-digit zero-padded nanosecond
// timestamp so a plain prefix scan yields chronological order, with the
// message id as a collision disconnector for same-nanosecond writes.
func conversationKey(pair domain.Pair) []byte {
	return []byte("conv:" + pair.Key())
}

func messageKey(pair domain.Pair, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("convmsg:%s:%019d:%s", pair.Key(), at.UnixNano(), id))
}

func messagePrefix(pair domain.Pair) []byte {
	return []byte("convmsg:" + pair.Key() + ":")
}

func userIndexKey(userID, pairKey string) []byte {
	return []byte("convuser:" + userID + ":" + pairKey)
}

func userIndexPrefix(userID string) []byte {
	return []byte("convuser:" + userID + ":")
}

type diskConversation struct {
	PairKey        string    `json:"pairKey"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

type diskMessage struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// FindOrCreate returns the single conversation of the unordered pair
// (a, b), creating it on first contact. The lookup and the create run
// inside one serializable transaction keyed on the canonical pair key,
// so two participants racing to start the same thread end up with
// exactly one record: the losing transaction aborts with ErrConflict
// and rereads the winner's row.
func (r *ConversationRepository) FindOrCreate(a, b string) (domain.Conversation, error) {
	pair, err := domain.NewPair(a, b)
	if err != nil {
		return domain.Conversation{}, err
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		var conv domain.Conversation
		err = r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(conversationKey(pair))
			if err == nil {
				return item.Value(func(val []byte) error {
					conv, err = decodeConversation(pair, val)
					return err
				})
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			now := time.Now().UTC()
			conv = domain.Conversation{Pair: pair, CreatedAt: now, LastActivityAt: now}
			data, err := json.Marshal(fromConversation(conv))
			if err != nil {
				return err
			}
			if err := txn.Set(conversationKey(pair), data); err != nil {
				return err
			}
			// Sidebar index rows for both participants.
			if err := txn.Set(userIndexKey(pair.A, pair.Key()), nil); err != nil {
				return err
			}
			return txn.Set(userIndexKey(pair.B, pair.Key()), nil)
		})
		if errors.Is(err, badger.ErrConflict) {
			r.log.Debug("conversation create conflict, retrying", "pair", pair.Key())
			continue
		}
		return conv, err
	}
	return domain.Conversation{}, err
}

// AppendMessage persists the message and bumps the conversation's last
// activity in the same transaction, so a thread can never reference a
// message that was not durably written.
func (r *ConversationRepository) AppendMessage(pair domain.Pair, msg domain.Message) error {
	data, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(conversationKey(pair))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrConversationNotFound
			}
			if err != nil {
				return err
			}
			var conv domain.Conversation
			if err := item.Value(func(val []byte) error {
				conv, err = decodeConversation(pair, val)
				return err
			}); err != nil {
				return err
			}

			if msg.CreatedAt.After(conv.LastActivityAt) {
				conv.LastActivityAt = msg.CreatedAt
			}
			convData, err := json.Marshal(fromConversation(conv))
			if err != nil {
				return err
			}
			if err := txn.Set(messageKey(pair, msg.CreatedAt, msg.ID), data); err != nil {
				return err
			}
			return txn.Set(conversationKey(pair), convData)
		})
		if errors.Is(err, badger.ErrConflict) {
			r.log.Debug("message append conflict, retrying", "pair", pair.Key())
			continue
		}
		return err
	}
	return err
}

// LoadThread returns every message of the pair in the single canonical
// order, oldest first. The padded-timestamp keys make a forward prefix
// scan sufficient.
func (r *ConversationRepository) LoadThread(pair domain.Pair) ([]domain.Message, error) {
	var messages []domain.Message

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := messagePrefix(pair)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				msg, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListThreads assembles the sidebar records for every conversation the
// user participates in, ordered by last activity descending. The unseen
// count only covers messages authored by the peer, matching the badge a
// client renders next to each thread.
func (r *ConversationRepository) ListThreads(userID string) ([]ThreadRecord, error) {
	var records []ThreadRecord

	err := r.db.View(func(txn *badger.Txn) error {
		pairKeys, err := collectPairKeys(txn, userID)
		if err != nil {
			return err
		}
		for _, pairKey := range pairKeys {
			pair, err := domain.ParsePairKey(pairKey)
			if err != nil {
				r.log.Warn("skipping malformed sidebar index entry", "key", pairKey)
				continue
			}
			record, err := buildThreadRecord(txn, pair, userID)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Conversation.LastActivityAt.After(records[j].Conversation.LastActivityAt)
	})
	return records, nil
}

// MarkSeen flips the seen flag on every message of the viewer/other
// thread authored by other. It never unsets the flag, and calling it
// with nothing unseen, or before any conversation exists, is a no-op.
// Returns the number of messages flipped.
func (r *ConversationRepository) MarkSeen(viewerID, otherID string) (int, error) {
	pair, err := domain.NewPair(viewerID, otherID)
	if err != nil {
		return 0, err
	}

	var flipped int
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		flipped = 0
		err = r.db.Update(func(txn *badger.Txn) error {
			// Badger forbids writes while an iterator is open, so the
			// scan collects first and the flips are written after.
			type pendingFlip struct {
				key  []byte
				data []byte
			}
			var flips []pendingFlip

			it := txn.NewIterator(badger.DefaultIteratorOptions)
			prefix := messagePrefix(pair)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var record diskMessage
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &record)
				}); err != nil {
					it.Close()
					return err
				}
				if record.AuthorID != otherID || record.Seen {
					continue
				}
				record.Seen = true
				data, err := json.Marshal(record)
				if err != nil {
					it.Close()
					return err
				}
				flips = append(flips, pendingFlip{key: item.KeyCopy(nil), data: data})
			}
			it.Close()

			for _, flip := range flips {
				if err := txn.Set(flip.key, flip.data); err != nil {
					return err
				}
			}
			flipped = len(flips)
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			r.log.Debug("mark-seen conflict, retrying", "pair", pair.Key())
			continue
		}
		return flipped, err
	}
	return 0, err
}

func collectPairKeys(txn *badger.Txn, userID string) ([]string, error) {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	prefix := userIndexPrefix(userID)
	var pairKeys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		pairKeys = append(pairKeys, string(it.Item().Key()[len(prefix):]))
	}
	return pairKeys, nil
}

// buildThreadRecord walks the thread once, keeping the final message
// and counting unseen peer-authored entries along the way.
func buildThreadRecord(txn *badger.Txn, pair domain.Pair, userID string) (ThreadRecord, error) {
	item, err := txn.Get(conversationKey(pair))
	if err != nil {
		return ThreadRecord{}, err
	}
	var conv domain.Conversation
	if err := item.Value(func(val []byte) error {
		conv, err = decodeConversation(pair, val)
		return err
	}); err != nil {
		return ThreadRecord{}, err
	}

	record := ThreadRecord{Conversation: conv}
	otherID := pair.Other(userID)

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := messagePrefix(pair)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var msg domain.Message
		if err := it.Item().Value(func(val []byte) error {
			msg, err = decodeMessage(val)
			return err
		}); err != nil {
			return ThreadRecord{}, err
		}
		if msg.AuthorID == otherID && !msg.Seen {
			record.Unseen++
		}
		last := msg
		record.LastMessage = &last
	}
	return record, nil
}

func fromConversation(conv domain.Conversation) diskConversation {
	return diskConversation{
		PairKey:        conv.Pair.Key(),
		CreatedAt:      conv.CreatedAt,
		LastActivityAt: conv.LastActivityAt,
	}
}

func decodeConversation(pair domain.Pair, val []byte) (domain.Conversation, error) {
	var record diskConversation
	if err := json.Unmarshal(val, &record); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		Pair:           pair,
		CreatedAt:      record.CreatedAt,
		LastActivityAt: record.LastActivityAt,
	}, nil
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:        msg.ID.String(),
		AuthorID:  msg.AuthorID,
		Text:      msg.Text,
		ImageURL:  msg.ImageURL,
		VideoURL:  msg.VideoURL,
		Seen:      msg.Seen,
		CreatedAt: msg.CreatedAt,
	}
}

func decodeMessage(val []byte) (domain.Message, error) {
	var record diskMessage
	if err := json.Unmarshal(val, &record); err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		AuthorID:  record.AuthorID,
		Text:      record.Text,
		ImageURL:  record.ImageURL,
		VideoURL:  record.VideoURL,
		Seen:      record.Seen,
		CreatedAt: record.CreatedAt,
	}, nil
}
