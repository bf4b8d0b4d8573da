package objectid

import (
	"strconv"
	"sync/atomic"
)

// ID identifies one live entity. Zero is reserved for "unbound".
type ID uint64

// Valid reports whether the identifier is bound.
func (id ID) Valid() bool { return id != 0 }

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Timestamp marks one revision of tracked content.
type Timestamp uint64

func (ts Timestamp) String() string { return strconv.FormatUint(uint64(ts), 10) }

// Generator hands out identifiers and timestamps from two atomic counters.
// The zero value is ready for use.
type Generator struct {
	lastID        atomic.Uint64
	lastTimestamp atomic.Uint64
}

// NewGenerator returns a generator whose counters start at zero.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns the next identifier.
func (g *Generator) NewID() ID {
	return ID(g.lastID.Add(1))
}

// Touch returns the next timestamp.
func (g *Generator) Touch() Timestamp {
	return Timestamp(g.lastTimestamp.Add(1))
}

// LastID reports the most recently issued identifier.
func (g *Generator) LastID() ID {
	return ID(g.lastID.Load())
}

// Default is the process-wide generator used when no generator is injected.
var Default = NewGenerator()

// Or returns g, falling back to Default when g is nil.
func Or(g *Generator) *Generator {
	if g == nil {
		return Default
	}
	return g
}

// Renewable is implemented by entities that own identifiers and can mint
// fresh ones for themselves and everything they own.
type Renewable interface {
	AssignNewIdentities(g *Generator)
}

// AssignNewIdentities walks node and replaces every identifier it owns.
func AssignNewIdentities(g *Generator, node Renewable) {
	if node == nil {
		return
	}
	node.AssignNewIdentities(Or(g))
}
