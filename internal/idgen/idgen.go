// Package idgen generates process-local unique identifiers for queries and
// keys. The original implementation seeds a 31-bit PRNG from wall-clock time
// per call; this system instead uses an atomic monotonic counter, per the
// DESIGN NOTES' observation that a wall-clock seed sampled at high call rates
// can repeat and that a monotonic counter gives the same collision-free
// guarantee within a process without the sampling cost.
package idgen

import "sync/atomic"

// Generator hands out strictly increasing, process-unique int64 ids starting
// from 1. The zero value is ready to use.
type Generator struct {
	next int64
}

// Next returns the next id in the sequence. Safe for concurrent use.
func (g *Generator) Next() int64 {
	return atomic.AddInt64(&g.next, 1)
}

// Queries is the package-level Generator used for query-ids.
var Queries Generator

// Keys is a package-level Generator for key-ids. Nothing in this module
// draws from it: key-ids are assigned by the fhe key generator.
var Keys Generator
