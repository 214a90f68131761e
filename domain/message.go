package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat entry inside a conversation. The body is text
// and/or a media reference. Messages are immutable once appended,
// except for the seen flag which only ever transitions false -> true.
type Message struct {
	ID        uuid.UUID
	AuthorID  string
	Text      string
	ImageURL  string
	VideoURL  string
	Seen      bool
	CreatedAt time.Time
}

// HasContent reports whether the message carries anything deliverable.
func (m Message) HasContent() bool {
	return m.Text != "" || m.ImageURL != "" || m.VideoURL != ""
}

// Conversation is the durable record of one two-party thread.
// At most one Conversation exists per Pair.
type Conversation struct {
	Pair           Pair
	CreatedAt      time.Time
	LastActivityAt time.Time
}
