package guid

import (
	"fmt"
	"sync"
)

// Generator produces identifiers for newly created entities.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type Generator interface {
	Generate() GUID
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
func (UUIDv7Generator) Generate() GUID {
	return New()
}

// SequenceGenerator hands out predictable identifiers for tests and
// golden scenarios: 00000000-0000-0000-0000-000000000001, ...002, and so on.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu   sync.Mutex
	next uint64
}

// NewSequenceGenerator creates a generator whose first GUID ends in start.
func NewSequenceGenerator(start uint64) *SequenceGenerator {
	return &SequenceGenerator{next: start}
}

// Generate returns the next GUID in sequence.
func (g *SequenceGenerator) Generate() GUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out GUID
	n := g.next
	for i := 15; i >= 8; i-- {
		out[i] = byte(n)
		n >>= 8
	}
	g.next++
	return out
}

// FixedGenerator returns predetermined identifiers, in order.
//
// Panics once all identifiers are consumed, which catches a test that
// creates more entities than it declared.
type FixedGenerator struct {
	mu    sync.Mutex
	guids []GUID
	idx   int
}

// NewFixedGenerator creates a generator that returns the parsed ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	guids := make([]GUID, len(ids))
	for i, id := range ids {
		guids[i] = MustParse(id)
	}
	return &FixedGenerator{guids: guids}
}

// Generate returns the next predetermined GUID.
func (g *FixedGenerator) Generate() GUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.guids) {
		panic(fmt.Sprintf("FixedGenerator: all %d guids exhausted", len(g.guids)))
	}
	out := g.guids[g.idx]
	g.idx++
	return out
}
