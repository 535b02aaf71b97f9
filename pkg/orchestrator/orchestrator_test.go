package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drorm/vmpilot/internal/config"
	"github.com/drorm/vmpilot/pkg/agent"
	"github.com/drorm/vmpilot/pkg/chat"
	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/stream"
	"github.com/drorm/vmpilot/pkg/toolexec"
	"github.com/drorm/vmpilot/pkg/usage"
)

type fakeProvider struct {
	responses []*agent.Response
	errs      []error
	calls     int
	reqs      []agent.Request
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Call(_ context.Context, req agent.Request) (*agent.Response, error) {
	i := f.calls
	f.calls++
	f.reqs = append(f.reqs, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		return &agent.Response{Text: "done"}, nil
	}
	return f.responses[i], nil
}

type fakePromptSource struct {
	prompt string
}

func (f *fakePromptSource) Prompt() string { return f.prompt }

type fakeBootstrapper struct {
	err   error
	calls int
}

func (f *fakeBootstrapper) Bootstrap(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

func listFilesExecutor(t *testing.T) *toolexec.Executor {
	t.Helper()
	executor := toolexec.New()
	require.NoError(t, executor.Register(toolexec.Descriptor{
		Name:        "list_files",
		Description: "List files in the working directory",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Handler: func(_ context.Context, _ map[string]interface{}) (string, error) {
			return "main.go\ngo.mod\nREADME.md", nil
		},
	}))
	return executor
}

func drain(t *testing.T, ch <-chan stream.Unit) []stream.Unit {
	t.Helper()
	var units []stream.Unit
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return units
			}
			units = append(units, u)
		case <-timeout:
			t.Fatal("timed out waiting for turn to finish")
		}
	}
}

func newTestOrchestrator(t *testing.T, provider agent.Provider, opts ...Option) (*Orchestrator, *chat.MemoryStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	store := chat.NewMemoryStore()
	opts = append([]Option{
		WithStore(store),
		WithExecutor(listFilesExecutor(t)),
		WithProvider(provider),
	}, opts...)
	o, err := New(cfg, opts...)
	require.NoError(t, err)
	return o, store
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("list files end to end", func(t *testing.T) {
		provider := &fakeProvider{
			responses: []*agent.Response{
				{
					Text: "I'll list the files for you.",
					ToolCalls: []message.ToolCall{
						{ID: "call_1", Name: "list_files", Arguments: map[string]interface{}{}},
					},
					Usage: usage.Usage{InputTokens: 100, OutputTokens: 20},
				},
				{
					Text:  "The directory contains main.go, go.mod and README.md.",
					Usage: usage.Usage{InputTokens: 150, OutputTokens: 30},
				},
			},
		}
		o, store := newTestOrchestrator(t, provider)

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "list the files here")},
		}))

		require.Len(t, units, 4)
		assert.True(t, strings.HasPrefix(units[0].Text, chat.MarkerPrefix), "new chat emits its identity marker first")
		assert.Equal(t, "I'll list the files for you.", units[1].Text)
		assert.Equal(t, stream.UnitToolOutput, units[2].Type)
		assert.Contains(t, units[2].Output, "main.go")
		assert.Equal(t, "The directory contains main.go, go.mod and README.md.", units[3].Text)

		chatID := strings.TrimPrefix(units[0].Text, chat.MarkerPrefix)
		saved, err := store.Get(context.Background(), chatID)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.Messages)
		assert.Equal(t, 250, saved.Usage.InputTokens)
		assert.Equal(t, 50, saved.Usage.OutputTokens)
	})

	t.Run("continuation emits no marker", func(t *testing.T) {
		provider := &fakeProvider{
			responses: []*agent.Response{{Text: "still here"}},
		}
		o, _ := newTestOrchestrator(t, provider)

		history := []message.Message{
			message.NewText(message.RoleUser, "hello"),
			message.NewText(message.RoleAssistant, chat.MarkerPrefix+"abc12345\nHi there."),
			message.NewText(message.RoleUser, "are you still there?"),
		}
		units := drain(t, o.Run(context.Background(), Request{Messages: history}))

		require.Len(t, units, 1)
		assert.Equal(t, "still here", units[0].Text)
	})

	t.Run("bare continuation is seeded from the stored transcript", func(t *testing.T) {
		provider := &fakeProvider{responses: []*agent.Response{{Text: "blue, as we discussed"}}}
		o, store := newTestOrchestrator(t, provider)

		prior := []message.Message{
			message.NewText(message.RoleUser, "my favorite color is blue"),
			message.NewText(message.RoleAssistant, "Chat id :abc12345\nNoted."),
		}
		require.NoError(t, store.Save(context.Background(), &chat.Chat{
			ID:       "abc12345",
			Messages: prior,
		}))

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "what is my favorite color?")},
			ChatID:   "abc12345",
		}))
		require.NotEmpty(t, units)

		require.Len(t, provider.reqs, 1)
		require.Len(t, provider.reqs[0].Messages, 3, "provider must see the stored history plus the new turn")
		assert.Equal(t, "my favorite color is blue", provider.reqs[0].Messages[0].PlainText())
		assert.Equal(t, "what is my favorite color?", provider.reqs[0].Messages[2].PlainText())

		saved, err := store.Get(context.Background(), "abc12345")
		require.NoError(t, err)
		assert.Len(t, saved.Messages, 4, "persisted history must retain the prior turns")
	})

	t.Run("full history request is not seeded twice", func(t *testing.T) {
		provider := &fakeProvider{responses: []*agent.Response{{Text: "ok"}}}
		o, store := newTestOrchestrator(t, provider)

		history := []message.Message{
			message.NewText(message.RoleUser, "hello"),
			message.NewText(message.RoleAssistant, chat.MarkerPrefix+"abc12345\nHi."),
			message.NewText(message.RoleUser, "and again"),
		}
		require.NoError(t, store.Save(context.Background(), &chat.Chat{
			ID:       "abc12345",
			Messages: history[:2],
		}))

		drain(t, o.Run(context.Background(), Request{Messages: history}))

		require.Len(t, provider.reqs, 1)
		assert.Len(t, provider.reqs[0].Messages, 3)
	})

	t.Run("explicit chat id wins", func(t *testing.T) {
		provider := &fakeProvider{responses: []*agent.Response{{Text: "ok"}}}
		o, store := newTestOrchestrator(t, provider)

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "hi")},
			ChatID:   "pinned001",
		}))

		require.Len(t, units, 1)
		saved, err := store.Get(context.Background(), "pinned001")
		require.NoError(t, err)
		assert.Equal(t, "pinned001", saved.ID)
	})

	t.Run("blocking bootstrap short-circuits", func(t *testing.T) {
		provider := &fakeProvider{}
		boot := &fakeBootstrapper{err: errors.New("no .vmpilot directory found")}
		o, _ := newTestOrchestrator(t, provider, WithBootstrapper(boot))

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "hi")},
		}))

		require.NotEmpty(t, units)
		last := units[len(units)-1]
		assert.Equal(t, stream.UnitError, last.Type)
		assert.Contains(t, last.Err, "no .vmpilot directory")
		assert.Equal(t, 0, provider.calls, "the model must not be called")
	})

	t.Run("project prompt is appended to the system prompt", func(t *testing.T) {
		provider := &fakeProvider{responses: []*agent.Response{{Text: "ok"}, {Text: "ok"}}}
		prompts := &fakePromptSource{prompt: "Always run the tests."}
		o, _ := newTestOrchestrator(t, provider, WithPromptSource(prompts))

		drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "hi")},
		}))

		require.Len(t, provider.reqs, 1)
		assert.Contains(t, provider.reqs[0].SystemPrompt, "Always run the tests.")

		// A reloaded prompt reaches the next turn
		prompts.prompt = "Never touch main."
		drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "hi again")},
		}))

		require.Len(t, provider.reqs, 2)
		assert.Contains(t, provider.reqs[1].SystemPrompt, "Never touch main.")
		assert.NotContains(t, provider.reqs[1].SystemPrompt, "Always run the tests.")
	})

	t.Run("denied tool folds into the result", func(t *testing.T) {
		provider := &fakeProvider{
			responses: []*agent.Response{
				{ToolCalls: []message.ToolCall{{ID: "call_1", Name: "list_files", Arguments: map[string]interface{}{}}}},
				{Text: "could not list"},
			},
		}
		o, _ := newTestOrchestrator(t, provider,
			WithPolicy(&toolexec.Policy{Deny: []string{"list_files"}}))

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "list the files here")},
		}))

		var toolUnit *stream.Unit
		for i := range units {
			if units[i].Type == stream.UnitToolOutput {
				toolUnit = &units[i]
			}
		}
		require.NotNil(t, toolUnit)
		assert.Contains(t, toolUnit.Output, "not allowed by policy")
		assert.NotEqual(t, stream.UnitError, units[len(units)-1].Type, "denial is not fatal")
	})

	t.Run("provider failure surfaces as final error unit", func(t *testing.T) {
		provider := &fakeProvider{errs: []error{errors.New("connection refused")}}
		o, _ := newTestOrchestrator(t, provider)

		units := drain(t, o.Run(context.Background(), Request{
			Messages: []message.Message{message.NewText(message.RoleUser, "hi")},
		}))

		last := units[len(units)-1]
		assert.Equal(t, stream.UnitError, last.Type)
		assert.Contains(t, last.Err, "connection refused")
	})
}

func TestNew_Validation(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Run("requires store", func(t *testing.T) {
		_, err := New(cfg, WithExecutor(toolexec.New()), WithProvider(&fakeProvider{}))
		assert.Error(t, err)
	})

	t.Run("requires executor", func(t *testing.T) {
		_, err := New(cfg, WithStore(chat.NewMemoryStore()), WithProvider(&fakeProvider{}))
		assert.Error(t, err)
	})
}
