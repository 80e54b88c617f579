package subscription

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Token names one subscriber's registration.
// Tokens are compared by value.
type Token struct {
	// Owner identifies the generator (and so the coordinator) that issued the token.
	Owner uuid.UUID

	// Seq is the per-generator sequence number, starting at 1.
	Seq uint64
}

// RootToken is the reserved token of a coordinator's own registration.
// It is never issued by a TokenGenerator.
var RootToken = Token{}

// IsRoot reports whether t is the root token.
func (t Token) IsRoot() bool {
	return t == RootToken
}

// String returns a short human-readable form of the token.
func (t Token) String() string {
	if t.IsRoot() {
		return "root"
	}
	return fmt.Sprintf("%s-%d", t.Owner.String()[:8], t.Seq)
}

// Compare orders tokens: the root token first, then by owner and sequence.
func (t Token) Compare(o Token) int {
	if c := bytes.Compare(t.Owner[:], o.Owner[:]); c != 0 {
		return c
	}
	switch {
	case t.Seq < o.Seq:
		return -1
	case t.Seq > o.Seq:
		return 1
	}
	return 0
}

// TokenGenerator issues process-unique tokens.
// It is safe for concurrent use.
type TokenGenerator struct {
	owner uuid.UUID
	seq   atomic.Uint64
}

// NewTokenGenerator creates a generator with a fresh random owner.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{owner: uuid.New()}
}

// Owner returns the generator's owner identity.
func (g *TokenGenerator) Owner() uuid.UUID {
	return g.owner
}

// Next returns the next token.
func (g *TokenGenerator) Next() Token {
	return Token{Owner: g.owner, Seq: g.seq.Add(1)}
}
