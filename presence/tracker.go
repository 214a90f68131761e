// Package presence tracks which user identities currently hold at least
// one live connection. State is process-local and rebuilt from nothing
// on restart.
package presence

import (
	"sort"
	"sync"
)

// Tracker counts live sessions per user identity behind one mutex.
// Set membership is derived from the count: a user with N concurrent
// devices appears online exactly once.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]int)}
}

// Connect records one more live session for userID. It returns true
// when this is the first session, i.e. the user just came online.
func (t *Tracker) Connect(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[userID]++
	return t.sessions[userID] == 1
}

// Disconnect records one session less for userID. It returns true when
// the last session ended and the user went offline. Disconnecting an
// unknown user is a no-op.
func (t *Tracker) Disconnect(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.sessions[userID]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(t.sessions, userID)
		return true
	}
	t.sessions[userID] = count - 1
	return false
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sessions[userID] > 0
}

// Online returns the current presence set, sorted for stable payloads.
func (t *Tracker) Online() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
