package runtime

import (
	"chatwire/contract"
	"sync"
)

type Set map[string]struct{}

// Registry maps live sessions to their delivery sinks and groups
// sessions into per-user rooms. A room is the fan-out target for
// everything addressed to one user identity; it holds every concurrent
// device of that user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // sessionID -> sink
	rooms    map[string]Set                // userID -> sessionIDs
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.EventSink),
		rooms:    make(map[string]Set),
	}
}

// Subscribe registers a session's sink and joins it to the room of
// userID. The room is created on first join.
func (r *Registry) Subscribe(sessionID, userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = sink

	if _, ok := r.rooms[userID]; !ok {
		r.rooms[userID] = make(Set)
	}
	r.rooms[userID][sessionID] = struct{}{}
}

// Unsubscribe drops the session and leaves its room. Empty rooms are
// removed so the map does not grow with user churn.
func (r *Registry) Unsubscribe(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	if members, ok := r.rooms[userID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, userID)
		}
	}
}

// SinkForSession resolves one session's sink, used for replies that go
// to the asking socket only.
func (r *Registry) SinkForSession(sessionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[sessionID]
	return sink, ok
}

// SinksForUser returns every live sink in the user's room. A user with
// no room yields nil; delivering to nobody is a valid no-op.
func (r *Registry) SinksForUser(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for sessionID := range members {
		if sink, exists := r.sessions[sessionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// AllSinks returns every live sink across all rooms, used for the
// presence broadcast.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Sessions reports the number of live sessions, for the debug endpoint.
func (r *Registry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
