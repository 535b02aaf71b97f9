package toolexec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	ChatID     string
	WorkingDir string
	Timeout    time.Duration
	Policy     *Policy
}

// Result represents the outcome of a tool execution. A failed execution
// carries its error text here; it is never an error to the caller.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor manages the tool registry and dispatches calls
type Executor struct {
	tools   map[string]*Descriptor
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// New creates a new Executor
func New() *Executor {
	return &Executor{
		tools:   make(map[string]*Descriptor),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a normalized tool to the registry, compiling its
// argument schema once.
func (e *Executor) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if desc.Handler == nil {
		return fmt.Errorf("tool %s has no handler", desc.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(desc.Parameters))
	if err != nil {
		return fmt.Errorf("tool %s has invalid parameter schema: %w", desc.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[desc.Name]; exists {
		return fmt.Errorf("tool %s is already registered", desc.Name)
	}

	e.tools[desc.Name] = &desc
	e.schemas[desc.Name] = schema

	log.Debug().Str("tool", desc.Name).Msg("Tool registered")
	return nil
}

// RegisterRaw normalizes a raw schema (flat or nested "function" shape)
// and registers it with the given handler.
func (e *Executor) RegisterRaw(raw map[string]interface{}, handler Handler) error {
	desc, err := NormalizeSchema(raw)
	if err != nil {
		return err
	}
	desc.Handler = handler
	return e.Register(desc)
}

// Get returns the descriptor for a tool, or nil
func (e *Executor) Get(name string) *Descriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tools[name]
}

// List returns the registered tool names, sorted
func (e *Executor) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderSchemas renders every registered tool for the provider request
func (e *Executor) ProviderSchemas() []map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, e.tools[name].ProviderSchema())
	}
	return schemas
}

// Execute dispatches one tool call. Unknown tools, policy denials, schema
// violations, handler errors and handler panics all fold into the Result.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}, execCtx *ExecutionContext) Result {
	e.mu.RLock()
	desc := e.tools[name]
	schema := e.schemas[name]
	e.mu.RUnlock()

	if desc == nil {
		return Result{Error: fmt.Sprintf("tool not found: %s. available tools: %s",
			name, strings.Join(e.List(), ", "))}
	}

	if execCtx != nil && !execCtx.Policy.IsAllowed(name) {
		return Result{Error: fmt.Sprintf("tool %s is not allowed by policy", name)}
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	validation, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return Result{Error: fmt.Sprintf("tool %s argument validation failed: %v", name, err)}
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, verr := range validation.Errors() {
			details = append(details, verr.String())
		}
		return Result{Error: fmt.Sprintf("tool %s invalid arguments: %s", name, strings.Join(details, "; "))}
	}

	if execCtx != nil && execCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, execCtx.Timeout)
		defer cancel()
	}

	output, err := e.run(ctx, desc, args)
	if err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Tool execution failed")
		return Result{Error: fmt.Sprintf("tool %s failed: %v", name, err)}
	}

	return Result{Success: true, Output: output}
}

// run invokes the handler, converting a panic into an error
func (e *Executor) run(ctx context.Context, desc *Descriptor, args map[string]interface{}) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return desc.Handler(ctx, args)
}
