//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import "context"

// OutboundEvent is one named payload on its way to a client session.
type OutboundEvent struct {
	Name    string
	Payload any
}

// EventSink is a delivery endpoint for outbound events, typically one
// live websocket. Implementations must be safe for concurrent use.
type EventSink interface {
	Consume(ctx context.Context, e OutboundEvent) error
}

// IRegistry groups live sessions into per-user rooms used as fan-out targets.
type IRegistry interface {
	Subscribe(sessionID, userID string, sink EventSink)
	Unsubscribe(sessionID, userID string)
	SinkForSession(sessionID string) (EventSink, bool)
	SinksForUser(userID string) []EventSink
	AllSinks() []EventSink
}

// IPresenceTracker owns the process-wide set of online user identities.
type IPresenceTracker interface {
	// Connect records one more live session for the user and reports
	// whether the user just came online (0 -> 1 sessions).
	Connect(userID string) bool
	// Disconnect records one session less and reports whether the user
	// just went offline (1 -> 0 sessions).
	Disconnect(userID string) bool
	IsOnline(userID string) bool
	Online() []string
}
