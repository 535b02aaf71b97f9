package message

import (
	"time"
)

// Role identifies the sender of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType identifies the kind of a content block
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolCall   BlockType = "tool_call"
	BlockToolResult BlockType = "tool_result"
)

// CacheControl marks a block eligible for provider-side prompt caching
type CacheControl struct {
	Type string `json:"type"`
}

// Ephemeral returns the wire marker accepted by the provider
func Ephemeral() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// ToolCall is a structured tool invocation requested by the model
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult carries the outcome of one tool call
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Block is one typed unit of message content
type Block struct {
	Type         BlockType     `json:"type"`
	Text         string        `json:"text,omitempty"`
	ToolCall     *ToolCall     `json:"tool_call,omitempty"`
	ToolResult   *ToolResult   `json:"tool_result,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Message is a single conversation turn
type Message struct {
	Role       Role                   `json:"role"`
	Text       string                 `json:"text,omitempty"`
	Blocks     []Block                `json:"blocks,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewText creates a plain-text message
func NewText(role Role, text string) Message {
	return Message{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewToolResult creates a tool-role message answering one tool call
func NewToolResult(toolCallID, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: toolCallID,
		Blocks: []Block{
			{
				Type: BlockToolResult,
				ToolResult: &ToolResult{
					ToolCallID: toolCallID,
					Content:    content,
					IsError:    isError,
				},
			},
		},
		Timestamp: time.Now(),
	}
}

// NewAssistant creates an assistant message from response text and tool calls
func NewAssistant(text string, calls []ToolCall) Message {
	msg := Message{
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
	if len(calls) == 0 {
		msg.Text = text
		return msg
	}
	if text != "" {
		msg.Blocks = append(msg.Blocks, Block{Type: BlockText, Text: text})
	}
	for i := range calls {
		call := calls[i]
		msg.Blocks = append(msg.Blocks, Block{Type: BlockToolCall, ToolCall: &call})
	}
	return msg
}

// IsPlainText reports whether the message content is a plain string
func (m *Message) IsPlainText() bool {
	return len(m.Blocks) == 0
}

// PlainText returns the message text when plain, or the concatenation
// of its text blocks otherwise
func (m *Message) PlainText() string {
	if m.IsPlainText() {
		return m.Text
	}
	text := ""
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			text += b.Text
		}
	}
	return text
}

// ToolCalls returns the tool-call blocks of the message in order
func (m *Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Blocks {
		if b.Type == BlockToolCall && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// HasToolCall reports whether the message contains a tool-call block
func (m *Message) HasToolCall() bool {
	for _, b := range m.Blocks {
		if b.Type == BlockToolCall {
			return true
		}
	}
	return false
}

// LastBlock returns a pointer to the final content block, or nil
func (m *Message) LastBlock() *Block {
	if len(m.Blocks) == 0 {
		return nil
	}
	return &m.Blocks[len(m.Blocks)-1]
}

// EnsureBlocks converts plain text content into a single text block so the
// message can carry block-level attributes. No-op for empty or already
// structured content.
func (m *Message) EnsureBlocks() {
	if len(m.Blocks) > 0 || m.Text == "" {
		return
	}
	m.Blocks = []Block{{Type: BlockText, Text: m.Text}}
	m.Text = ""
}
