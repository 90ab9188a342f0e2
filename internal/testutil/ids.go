package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out predictable call ids for tests.
//
// Repositories tag every operation with a call id; production code uses
// UUIDv7. Golden traces need the same ids on every run, so tests inject
// a SequentialIDs instead.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator whose first id is "<prefix>-1".
// An empty prefix defaults to "call".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "call"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Last returns the most recently issued id, or "" before the first Next.
func (g *SequentialIDs) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence. After Reset, Next returns "<prefix>-1".
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
