// Package usage normalizes token accounting across providers and derives a
// cost estimate from per-model pricing.
//
// Invariants:
// - Counters only ever grow; Add never subtracts.
// - Cost is memoized and invalidated by the next Add.
// - Unknown models fall back to the default rate row, never to zero cost.
package usage
