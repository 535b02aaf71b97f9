package message

import (
	"time"

	"github.com/google/uuid"
)

// Exchange groups one user message with everything it produced in a turn.
// It is the unit handed to persistence and duration reporting.
type Exchange struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chat_id"`
	UserMessage       Message    `json:"user_message"`
	AssistantMessages []Message  `json:"assistant_messages,omitempty"`
	ToolCalls         []ToolCall `json:"tool_calls,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       time.Time  `json:"completed_at,omitempty"`
}

// NewExchange starts a new exchange for a chat
func NewExchange(chatID string, userMessage Message) *Exchange {
	return &Exchange{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		UserMessage: userMessage,
		StartedAt:   time.Now(),
	}
}

// Record folds the messages a turn produced into the exchange: assistant
// messages are kept and their tool calls collected.
func (e *Exchange) Record(produced []Message) {
	for i := range produced {
		msg := &produced[i]
		if msg.Role != RoleAssistant {
			continue
		}
		e.AssistantMessages = append(e.AssistantMessages, *msg)
		e.ToolCalls = append(e.ToolCalls, msg.ToolCalls()...)
	}
}

// Complete stamps the exchange as finished
func (e *Exchange) Complete() {
	e.CompletedAt = time.Now()
}

// Duration returns how long the exchange took; zero until completed
func (e *Exchange) Duration() time.Duration {
	if e.CompletedAt.IsZero() {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}
