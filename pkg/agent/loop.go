package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/pkg/cachecontrol"
	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/toolexec"
	"github.com/drorm/vmpilot/pkg/usage"
)

// Outcome is the typed termination reason of a loop run
type Outcome int

const (
	// OutcomeComplete means the model finished without requesting more tools
	OutcomeComplete Outcome = iota
	// OutcomeIterationLimit means the iteration cap stopped the loop (soft stop)
	OutcomeIterationLimit
	// OutcomeProviderError means the LLM call itself failed (fatal)
	OutcomeProviderError
	// OutcomeProtocolError means the inbound history violates tool
	// call/result sequencing and was never sent to the provider
	OutcomeProtocolError
)

// EventType identifies a loop output event
type EventType string

const (
	// EventText is a fragment of assistant response text
	EventText EventType = "text"
	// EventToolOutput is the formatted outcome of one tool call
	EventToolOutput EventType = "tool_output"
)

// Event is one output unit produced while the loop runs. Text events for a
// turn are always emitted before that turn's tool outputs.
type Event struct {
	Type    EventType
	Text    string
	Command string
	Output  string
	IsError bool
}

// EmitFunc receives loop events in production order
type EmitFunc func(Event)

// Config holds loop configuration
type Config struct {
	Provider       Provider
	Executor       *toolexec.Executor
	Tracker        *usage.Tracker
	Injector       *cachecontrol.Injector
	Logger         zerolog.Logger
	Model          string
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	MaxIterations  int
	RequestTimeout time.Duration
	ExecContext    *toolexec.ExecutionContext
}

// DefaultMaxIterations bounds runaway tool loops when no cap is configured
const DefaultMaxIterations = 25

// DefaultRequestTimeout is the per-call provider timeout
const DefaultRequestTimeout = 30 * time.Second

// Loop is the iterative controller driving one conversation turn
type Loop struct {
	cfg Config
}

// Result is what the loop hands back when it stops
type Result struct {
	Outcome    Outcome
	Messages   []message.Message
	Iterations int
	Err        error
}

// NewLoop creates a loop from config
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Loop{cfg: cfg}, nil
}

// Run drives the conversation until the model stops requesting tools, the
// iteration cap is reached, or the provider fails. It returns the full
// updated message history; emit receives output units as they are produced.
func (l *Loop) Run(ctx context.Context, messages []message.Message, emit EmitFunc) Result {
	if emit == nil {
		emit = func(Event) {}
	}
	logger := l.cfg.Logger

	// Providers reject broken call/result adjacency; fail before the call
	if err := message.ValidateSequence(messages); err != nil {
		logger.Error().Err(err).Msg("Inbound history violates tool sequencing")
		return Result{
			Outcome:  OutcomeProtocolError,
			Messages: messages,
			Err:      err,
		}
	}

	tools := l.cfg.Executor.ProviderSchemas()

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return Result{
				Outcome:    OutcomeProviderError,
				Messages:   messages,
				Iterations: iteration - 1,
				Err:        ctx.Err(),
			}
		default:
		}

		if l.cfg.Injector != nil {
			l.cfg.Injector.Inject(messages)
		}

		response, err := l.callProvider(ctx, messages, tools)
		if err != nil {
			if errors.Is(err, ErrStepLimit) {
				// Provider-side step limit is the one non-fatal call failure
				return l.softStop(messages, iteration, emit)
			}
			logger.Error().Err(err).Int("iteration", iteration).Msg("Provider call failed")
			return Result{
				Outcome:    OutcomeProviderError,
				Messages:   messages,
				Iterations: iteration,
				Err:        err,
			}
		}

		l.recordUsage(response)

		// Text precedes any tool output of the same turn
		if response.Text != "" {
			emit(Event{Type: EventText, Text: response.Text})
		}

		if len(response.ToolCalls) == 0 {
			messages = append(messages, message.NewAssistant(response.Text, nil))
			logger.Debug().Int("iterations", iteration).Msg("Loop complete")
			return Result{
				Outcome:    OutcomeComplete,
				Messages:   messages,
				Iterations: iteration,
			}
		}

		messages = append(messages, message.NewAssistant(response.Text, response.ToolCalls))

		// Strictly sequential dispatch, provider order
		for _, call := range response.ToolCalls {
			result := l.cfg.Executor.Execute(ctx, call.Name, call.Arguments, l.cfg.ExecContext)

			content := result.Output
			if result.Error != "" {
				content = result.Error
			}

			messages = append(messages, message.NewToolResult(call.ID, content, result.Error != ""))

			emit(Event{
				Type:    EventToolOutput,
				Command: commandLabel(call),
				Output:  content,
				IsError: result.Error != "",
			})

			logger.Debug().
				Str("tool", call.Name).
				Str("tool_call_id", call.ID).
				Bool("success", result.Success).
				Msg("Tool call dispatched")
		}
	}

	return l.softStop(messages, l.cfg.MaxIterations, emit)
}

// softStop ends the loop with a user-facing continuation notice
func (l *Loop) softStop(messages []message.Message, iterations int, emit EmitFunc) Result {
	notice := fmt.Sprintf("Reached %d steps. Reply to continue.", iterations)
	emit(Event{Type: EventText, Text: notice})
	messages = append(messages, message.NewText(message.RoleAssistant, notice))

	l.cfg.Logger.Info().Int("iterations", iterations).Msg("Iteration cap reached, soft stop")
	return Result{
		Outcome:    OutcomeIterationLimit,
		Messages:   messages,
		Iterations: iterations,
	}
}

// callProvider makes one LLM call under the request timeout
func (l *Loop) callProvider(ctx context.Context, messages []message.Message, tools []map[string]interface{}) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
	defer cancel()

	return l.cfg.Provider.Call(callCtx, Request{
		Model:        l.cfg.Model,
		Messages:     messages,
		Tools:        tools,
		Temperature:  l.cfg.Temperature,
		MaxTokens:    l.cfg.MaxTokens,
		SystemPrompt: l.cfg.SystemPrompt,
	})
}

// recordUsage accounts the response's tokens, estimating from text length
// when the provider reported nothing.
func (l *Loop) recordUsage(response *Response) {
	if l.cfg.Tracker == nil {
		return
	}
	u := response.Usage
	if u == (usage.Usage{}) {
		u = usage.Estimate(response.Text)
	}
	l.cfg.Tracker.Add(u)
}

// commandLabel renders the command line shown for a tool output block
func commandLabel(call message.ToolCall) string {
	if cmd, ok := call.Arguments["command"].(string); ok && cmd != "" {
		return cmd
	}
	return call.Name
}
