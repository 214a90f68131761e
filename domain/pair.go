// Package domain contains the core concepts of the messaging system,
// starting with the canonical participant pair identifying a thread.
package domain

import (
	"chatwire/errors"
	"strings"
)

// pairSeparator joins the two participant ids into a storage key.
// User ids are UUIDs, so "_" can never appear inside an id.
const pairSeparator = "_"

// Pair is the unordered two-participant key of a conversation.
// A always holds the lexicographically smaller id, so that
// NewPair(x, y) and NewPair(y, x) produce the same value and a single
// storage key. This replaces symmetric either-order lookups with a
// structurally unambiguous identifier.
type Pair struct {
	A string
	B string
}

func NewPair(x, y string) (Pair, error) {
	if x == "" || y == "" {
		return Pair{}, errors.ErrEmptyParticipant
	}
	if x == y {
		return Pair{}, errors.ErrSameParticipant
	}
	if y < x {
		x, y = y, x
	}
	return Pair{A: x, B: y}, nil
}

// Key returns the canonical storage key of the pair.
func (p Pair) Key() string {
	return p.A + pairSeparator + p.B
}

// Includes reports whether id is one of the two participants.
func (p Pair) Includes(id string) bool {
	return p.A == id || p.B == id
}

// Other returns the participant facing id, or "" when id is not part of the pair.
func (p Pair) Other(id string) string {
	switch id {
	case p.A:
		return p.B
	case p.B:
		return p.A
	default:
		return ""
	}
}

// ParsePairKey rebuilds a Pair from its storage key.
func ParsePairKey(key string) (Pair, error) {
	parts := strings.SplitN(key, pairSeparator, 2)
	if len(parts) != 2 {
		return Pair{}, errors.ErrMalformedPairKey
	}
	return NewPair(parts[0], parts[1])
}
