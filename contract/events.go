package contract

import (
	"encoding/json"
	"time"
)

// Wire event names. Inbound names mirror what clients emit; outbound
// names are what client UIs subscribe to.
const (
	// client -> server
	EventMessagePage = "message-page"
	EventNewMessage  = "new message"
	EventSidebar     = "sidebar"
	EventSeen        = "seen"
	EventSearch      = "search"

	// server -> client
	EventOnlineUsers  = "onlineUser"
	EventMessageUser  = "message-user"
	EventMessages     = "message"
	EventConversation = "conversation"
	EventSearchResult = "search-result"
	EventError        = "error"
)

// Envelope frames every payload crossing the websocket, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePagePayload opens the thread against one target user.
type MessagePagePayload struct {
	UserID string `json:"userId" validate:"required"`
}

// NewMessagePayload carries one outgoing message. Sender must match the
// authenticated session identity; at least one body field must be set.
type NewMessagePayload struct {
	Sender   string `json:"sender" validate:"required"`
	Receiver string `json:"receiver" validate:"required"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
	VideoURL string `json:"videoUrl"`
}

// SeenPayload acknowledges every unseen message authored by UserID in
// the thread shared with the session user.
type SeenPayload struct {
	UserID string `json:"userId" validate:"required"`
}

// SearchPayload queries one thread for messages matching Query.
type SearchPayload struct {
	UserID string `json:"userId" validate:"required"`
	Query  string `json:"query" validate:"required"`
}

// ProfilePayload is the message-user response: the display record of
// the thread peer plus their live presence flag.
type ProfilePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
	Online    bool   `json:"online"`
}

// MessagePayload is one thread entry as delivered to clients.
type MessagePayload struct {
	ID        string    `json:"id"`
	Sender    string    `json:"msgByUserId"`
	Text      string    `json:"text,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadSummaryPayload is one sidebar row.
type ThreadSummaryPayload struct {
	ConversationID string          `json:"conversationId"`
	Peer           ProfilePayload  `json:"participant"`
	LastMessage    *MessagePayload `json:"lastMessage,omitempty"`
	Unseen         int             `json:"unseenCount"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ErrorPayload is sent before a forced disconnect.
type ErrorPayload struct {
	Message string `json:"message"`
}
