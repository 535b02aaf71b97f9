package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/usage"
)

// ErrStepLimit is returned by a provider adapter when the provider itself
// reports a step-limit condition. The loop treats it as a soft stop, never
// as a fatal provider failure. Adapters map the provider's structured
// signal to this sentinel; nothing matches on error text.
var ErrStepLimit = errors.New("provider reported step limit")

// Request contains the parameters for one LLM call
type Request struct {
	Model        string
	Messages     []message.Message
	Tools        []map[string]interface{}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is the normalized result of one LLM call. Each provider adapter
// extracts text, tool calls and usage from its own wire shape; nothing
// downstream inspects provider-specific fields.
type Response struct {
	Text      string
	ToolCalls []message.ToolCall
	Usage     usage.Usage
}

// Provider is an adapter over one LLM provider's API
type Provider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// NewProvider creates a provider adapter by name
func NewProvider(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
