// Package stream bridges the background agent loop to a caller that
// consumes output synchronously.
//
// Invariants:
// - Units reach the consumer in exact production order.
// - The worker never panics across the bridge; failures surface as a
//   final error unit.
// - The output channel is closed by the worker side, never the consumer.
package stream
