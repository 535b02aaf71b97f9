// Package toolexec manages the tool registry and dispatches tool calls
// requested by the model.
//
// Invariants:
// - Both flat and nested "function" schema shapes normalize to one Descriptor
//   at registration; dispatch never re-inspects schema shape.
// - Tool failures are returned as results, never as errors to the loop.
// - Arguments are validated against the registered JSON schema before the
//   handler runs.
package toolexec
