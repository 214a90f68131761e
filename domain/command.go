package domain

import "time"

// SendMessageCommand is the intent of one participant to deliver a
// message to the other. SenderID is the authenticated session identity.
type SendMessageCommand struct {
	SenderID   string
	ReceiverID string
	Text       string
	ImageURL   string
	VideoURL   string
	CreatedAt  time.Time
}

// SearchCommand asks for messages of one thread matching free-text terms.
type SearchCommand struct {
	RequesterID string
	OtherID     string
	Terms       string
}
