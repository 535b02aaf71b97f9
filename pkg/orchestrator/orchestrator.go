package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/internal/config"
	"github.com/drorm/vmpilot/pkg/agent"
	"github.com/drorm/vmpilot/pkg/cachecontrol"
	"github.com/drorm/vmpilot/pkg/chat"
	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/stream"
	"github.com/drorm/vmpilot/pkg/toolexec"
	"github.com/drorm/vmpilot/pkg/usage"
)

// Orchestrator coordinates sessions, the agent loop and the output stream
type Orchestrator struct {
	cfg          *config.Config
	store        chat.Store
	bootstrapper chat.Bootstrapper
	executor     *toolexec.Executor
	provider     agent.Provider
	injector     *cachecontrol.Injector
	bridge       *stream.Bridge
	policy       *toolexec.Policy
	prompts      PromptSource
	logger       zerolog.Logger
	projectRoot  string
}

// PromptSource supplies the per-project prompt appended to the system
// prompt on every turn. *project.Project satisfies it.
type PromptSource interface {
	Prompt() string
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Orchestrator)

// WithStore sets the chat store
func WithStore(store chat.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithBootstrapper sets the new-conversation bootstrap collaborator
func WithBootstrapper(b chat.Bootstrapper) Option {
	return func(o *Orchestrator) {
		o.bootstrapper = b
	}
}

// WithProvider overrides the provider built from config
func WithProvider(p agent.Provider) Option {
	return func(o *Orchestrator) {
		o.provider = p
	}
}

// WithExecutor sets the tool executor
func WithExecutor(e *toolexec.Executor) Option {
	return func(o *Orchestrator) {
		o.executor = e
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithProjectRoot sets the working-directory context for tools and bootstrap
func WithProjectRoot(root string) Option {
	return func(o *Orchestrator) {
		o.projectRoot = root
	}
}

// WithPolicy restricts which registered tools turns may invoke
func WithPolicy(policy *toolexec.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithPromptSource sets the per-project prompt source
func WithPromptSource(ps PromptSource) Option {
	return func(o *Orchestrator) {
		o.prompts = ps
	}
}

// New creates an orchestrator from config. A store and an executor are
// required; the provider defaults to the one named in config.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.store == nil {
		return nil, fmt.Errorf("chat store is required")
	}
	if o.executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if o.provider == nil {
		provider, err := agent.NewProvider(cfg.Agent.Provider, cfg.APIKey())
		if err != nil {
			return nil, err
		}
		o.provider = provider
	}

	o.injector = cachecontrol.New(cfg.Cache.Breakpoints, o.logger)
	o.bridge = stream.NewBridge(0, o.logger)

	return o, nil
}

// Request is one inbound conversation turn
type Request struct {
	// Messages is the full conversation history ending with the user turn
	Messages []message.Message
	// ChatID pins the conversation explicitly; empty means resolve from
	// the history marker or start a new chat
	ChatID string
	// ProjectRoot overrides the orchestrator's default working directory
	ProjectRoot string
}

// Run executes one turn and returns the ordered output stream. The channel
// is closed when the turn is over; failures arrive as a final error unit.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan stream.Unit {
	return o.bridge.Run(ctx, func(ctx context.Context, emit func(stream.Unit)) error {
		return o.turn(ctx, req, emit)
	})
}

func (o *Orchestrator) turn(ctx context.Context, req Request, emit func(stream.Unit)) error {
	projectRoot := req.ProjectRoot
	if projectRoot == "" {
		projectRoot = o.projectRoot
	}

	session := chat.NewSession(o.store, o.bootstrapper, projectRoot, o.logger)
	chatID := session.Resolve(ctx, req.Messages, req.ChatID)

	if session.IsNew() {
		emit(stream.TextUnit(session.MarkerLine()))
	}
	if session.Done() {
		return fmt.Errorf("conversation blocked: %w", session.BootstrapError())
	}

	// A bare user turn on an existing chat continues from the stored
	// transcript; a request that carries assistant turns is already the
	// full history and must not be seeded twice.
	history := req.Messages
	if !session.IsNew() && !hasAssistantTurn(req.Messages) {
		if stored := session.Load(ctx); len(stored.Messages) > 0 {
			history = make([]message.Message, 0, len(stored.Messages)+len(req.Messages))
			history = append(history, stored.Messages...)
			history = append(history, req.Messages...)
		}
	}

	tracker := usage.NewTracker(o.provider.Name(), o.cfg.Agent.Model)

	loop, err := agent.NewLoop(agent.Config{
		Provider:       o.provider,
		Executor:       o.executor,
		Tracker:        tracker,
		Injector:       o.injector,
		Logger:         o.logger,
		Model:          o.cfg.Agent.Model,
		SystemPrompt:   o.systemPrompt(),
		Temperature:    o.cfg.Agent.Temperature,
		MaxTokens:      o.cfg.Agent.MaxTokens,
		MaxIterations:  o.cfg.Agent.MaxIterations,
		RequestTimeout: time.Duration(o.cfg.Agent.RequestTimeout) * time.Second,
		ExecContext: &toolexec.ExecutionContext{
			ChatID:     chatID,
			WorkingDir: projectRoot,
			Policy:     o.policy,
		},
	})
	if err != nil {
		return err
	}

	var exchange *message.Exchange
	if n := len(req.Messages); n > 0 {
		exchange = message.NewExchange(chatID, req.Messages[n-1])
	}

	result := loop.Run(ctx, history, func(e agent.Event) {
		emit(stream.FromEvent(e))
	})

	// Persist whatever the turn produced, partial results included
	session.Persist(ctx, result.Messages, tracker.Totals())

	logEvent := o.logger.Info().
		Str("chat_id", chatID).
		Int("iterations", result.Iterations).
		Int("input_tokens", tracker.Totals().InputTokens).
		Int("output_tokens", tracker.Totals().OutputTokens).
		Float64("cost_usd", tracker.Cost().Total)
	if exchange != nil {
		exchange.Record(result.Messages[len(history):])
		exchange.Complete()
		logEvent = logEvent.
			Str("exchange_id", exchange.ID).
			Dur("duration", exchange.Duration()).
			Int("tool_calls", len(exchange.ToolCalls))
	}
	logEvent.Msg("Turn finished")

	// Provider and protocol failures both reach the caller as the final
	// error unit; soft stops do not.
	return result.Err
}

// systemPrompt combines the configured prompt with the project prompt
func (o *Orchestrator) systemPrompt() string {
	prompt := o.cfg.Agent.SystemPrompt
	if o.prompts == nil {
		return prompt
	}
	project := o.prompts.Prompt()
	if project == "" {
		return prompt
	}
	if prompt == "" {
		return project
	}
	return prompt + "\n\n" + project
}

// hasAssistantTurn reports whether the request already carries prior
// assistant messages, meaning the client submitted its full history.
func hasAssistantTurn(messages []message.Message) bool {
	for i := range messages {
		if messages[i].Role == message.RoleAssistant {
			return true
		}
	}
	return false
}
