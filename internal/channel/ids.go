package channel

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints stable ids for computed channels.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 channel ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so listing
// computed channels by id also orders them by creation time. Uses
// github.com/google/uuid for RFC 4122 compliant UUIDs.
//
// Thread-safety: stateless, safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids for testing.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("ch-1", "ch-2")
//	gen.Generate() // "ch-1"
//	gen.Generate() // "ch-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
// Panics when all ids have been consumed; a test that draws more ids than
// it declared is broken and should fail fast.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("channel: FixedGenerator exhausted all ids")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
