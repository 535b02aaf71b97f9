package message

import (
	"fmt"
)

// ProtocolSequenceError reports a tool-call block that is not immediately
// paired with a matching tool-result message. Providers enforce strict
// call/result alternation, so a broken pair makes the history unusable.
type ProtocolSequenceError struct {
	ToolCallID string
	Index      int // index of the offending message in the history
}

func (e *ProtocolSequenceError) Error() string {
	if e.ToolCallID == "" {
		return fmt.Sprintf("message %d: tool result without a preceding tool call", e.Index)
	}
	return fmt.Sprintf("message %d: tool call %q has no matching tool result", e.Index, e.ToolCallID)
}

// ValidateSequence checks the call/result adjacency invariant: every
// assistant tool-call block must be followed, before any other role speaks,
// by exactly one tool-role message with the same tool call ID, in call order.
func ValidateSequence(messages []Message) error {
	for i := 0; i < len(messages); i++ {
		msg := messages[i]

		if msg.Role == RoleTool {
			// Reached only when a result is not consumed by the
			// assistant scan below.
			return &ProtocolSequenceError{Index: i}
		}

		if msg.Role != RoleAssistant {
			continue
		}

		calls := msg.ToolCalls()
		for j, call := range calls {
			next := i + 1 + j
			if next >= len(messages) {
				return &ProtocolSequenceError{ToolCallID: call.ID, Index: i}
			}
			result := messages[next]
			if result.Role != RoleTool || result.ToolCallID != call.ID {
				return &ProtocolSequenceError{ToolCallID: call.ID, Index: i}
			}
		}
		i += len(calls)
	}
	return nil
}
