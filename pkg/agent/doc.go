// Package agent runs the iterative LLM conversation loop: call the model,
// dispatch requested tool calls, append results, repeat until the model
// stops asking for tools or the iteration cap is reached.
//
// Invariants:
// - Tool calls execute strictly sequentially, in provider order.
// - Every tool call produces exactly one appended tool-role message.
// - Response text is emitted before tool outputs of the same turn.
// - The iteration cap is a soft stop, reported as a typed outcome.
package agent
