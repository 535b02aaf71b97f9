// Package orchestrator wires one conversation turn end to end: resolve the
// chat identity, run the agent loop on a background worker, stream output
// units to the caller, and persist the turn's outcome.
//
// Invariants:
// - A new chat's identity marker is the first unit on the stream.
// - A blocking bootstrap short-circuits the turn before any model call.
// - Persistence runs at turn end regardless of outcome and never fails
//   the turn.
package orchestrator
