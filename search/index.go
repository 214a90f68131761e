// Package search maintains a full-text index of message bodies. Every
// document is scoped by its conversation pair key, so a query can never
// surface messages from a thread the requester is not part of.
package search

import (
	"context"
	"log/slog"

	"chatwire/domain"

	"github.com/blugelabs/bluge"
)

type IMessageIndex interface {
	Index(pairKey string, msg domain.Message) error
	Search(ctx context.Context, pairKey, terms string, limit int) ([]string, error)
	Close() error
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (m *MessageIndex) Close() error {
	return m.writer.Close()
}

// Index upserts one message. Only the text body is analyzed; media-only
// messages produce an empty text field and simply never match.
func (m *MessageIndex) Index(pairKey string, msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("text", msg.Text)).
		AddField(bluge.NewKeywordField("pair", pairKey)).
		AddField(bluge.NewKeywordField("author", msg.AuthorID)).
		AddField(bluge.NewDateTimeField("createdAt", msg.CreatedAt))
	return m.writer.Update(doc.ID(), doc)
}

// Search returns the ids of the best-matching messages inside one
// thread, most relevant first.
func (m *MessageIndex) Search(ctx context.Context, pairKey, terms string, limit int) ([]string, error) {
	reader, err := m.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			m.log.Warn("failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text")).
		AddMust(bluge.NewTermQuery(pairKey).SetField("pair"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []string
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
