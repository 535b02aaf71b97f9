package stream

import (
	"fmt"

	"github.com/drorm/vmpilot/pkg/agent"
)

// UnitType identifies a streamed output unit
type UnitType string

const (
	// UnitText is a fragment of assistant text
	UnitText UnitType = "text"
	// UnitToolOutput is a formatted tool-output block
	UnitToolOutput UnitType = "tool_output"
	// UnitError is a terminal error report
	UnitError UnitType = "error"
)

// Unit is one streamed output item
type Unit struct {
	Type    UnitType `json:"type"`
	Text    string   `json:"text,omitempty"`
	Command string   `json:"command,omitempty"`
	Lang    string   `json:"lang,omitempty"`
	Output  string   `json:"output,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// TextUnit wraps assistant text
func TextUnit(text string) Unit {
	return Unit{Type: UnitText, Text: text}
}

// ToolOutputUnit wraps one tool call's output
func ToolOutputUnit(command, lang, output string) Unit {
	if lang == "" {
		lang = "text"
	}
	return Unit{Type: UnitToolOutput, Command: command, Lang: lang, Output: output}
}

// ErrorUnit wraps a terminal failure
func ErrorUnit(err error) Unit {
	return Unit{Type: UnitError, Err: err.Error()}
}

// FromEvent converts a loop event into a streamed unit
func FromEvent(e agent.Event) Unit {
	switch e.Type {
	case agent.EventToolOutput:
		return ToolOutputUnit(e.Command, "", e.Output)
	default:
		return TextUnit(e.Text)
	}
}

// Render formats the unit for display
func (u Unit) Render() string {
	switch u.Type {
	case UnitToolOutput:
		return fmt.Sprintf("**$ %s**\n```%s\n%s\n```", u.Command, u.Lang, u.Output)
	case UnitError:
		return fmt.Sprintf("Error: %s", u.Err)
	default:
		return u.Text
	}
}
