package rule

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces unique rule identifiers.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 rule IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs sort by
// creation time, which keeps history logs and journal rows readable.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a new hyphenated UUIDv7 string.
// Panics if UUID generation fails, which does not happen in practice.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs in order. It enables
// deterministic scenario execution and golden-file comparison in tests.
//
// Safe for concurrent use via an internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
// It panics once all ids are consumed; a test that draws more rules than it
// budgeted for is misconfigured and should fail fast.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// NewID returns the next predetermined id.
func (g *FixedGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
