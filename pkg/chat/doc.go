// Package chat gives every inbound request a stable conversation identity
// and persists conversation state across requests.
//
// Invariants:
// - An explicit chat ID always wins over marker scanning.
// - Only plain-text assistant messages are scanned for the identity marker.
// - Persistence is best-effort: a store failure never aborts a turn.
package chat
