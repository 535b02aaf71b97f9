// Package message defines the conversation data model shared by the agent
// loop, the chat store, and the stream bridge.
//
// Invariants:
// - A message carries either plain text or an ordered list of typed blocks, never both.
// - Every assistant tool-call block is paired with exactly one following tool-role
//   message carrying the same tool call ID.
// - Cache-control markers live on content blocks and are managed by cachecontrol.
package message
