// Package project validates per-project workspace layout and loads the
// project prompt that gets appended to the system prompt.
//
// Invariants:
// - Bootstrap fails only when the .vmpilot directory is absent; a missing
//   prompt file degrades to an empty prompt.
// - Prompt reads are safe under concurrent reload.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// Dir is the per-project configuration directory
	Dir = ".vmpilot"
	// PromptsDir holds prompt files under Dir
	PromptsDir = "prompts"
	// PromptFile is the per-project prompt appended to the system prompt
	PromptFile = "project.md"

	// maxPromptBytes caps the loaded prompt; oversized files are truncated
	maxPromptBytes = 64 * 1024
)

// ErrNoProject reports a project root without the expected layout
var ErrNoProject = errors.New("no " + Dir + " directory found")

// Project binds a working directory to its workspace configuration
type Project struct {
	root   string
	logger zerolog.Logger

	mu     sync.RWMutex
	prompt string
}

// New creates a project rooted at the given directory
func New(root string, logger zerolog.Logger) *Project {
	return &Project{root: root, logger: logger}
}

// Root returns the project root directory
func (p *Project) Root() string {
	return p.root
}

// PromptPath returns the path of the per-project prompt file
func (p *Project) PromptPath() string {
	return filepath.Join(p.root, Dir, PromptsDir, PromptFile)
}

// Bootstrap validates the workspace layout and loads the project prompt.
// A missing layout is a blocking condition for new conversations.
func (p *Project) Bootstrap(ctx context.Context, root string) error {
	if root != "" {
		p.root = root
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(filepath.Join(p.root, Dir))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w in %s: create %s/%s/%s to set up the project",
				ErrNoProject, p.root, Dir, PromptsDir, PromptFile)
		}
		return fmt.Errorf("failed to inspect project layout: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s in %s is not a directory", Dir, p.root)
	}

	if err := p.Reload(); err != nil {
		return err
	}

	p.logger.Info().
		Str("root", p.root).
		Int("prompt_bytes", len(p.Prompt())).
		Msg("Project bootstrapped")

	return nil
}

// Reload re-reads the project prompt from disk. A missing prompt file
// clears the prompt without failing.
func (p *Project) Reload() error {
	data, err := os.ReadFile(p.PromptPath())
	if err != nil {
		if os.IsNotExist(err) {
			p.setPrompt("")
			return nil
		}
		return fmt.Errorf("failed to read project prompt: %w", err)
	}

	if len(data) > maxPromptBytes {
		p.logger.Warn().
			Int("bytes", len(data)).
			Int("limit", maxPromptBytes).
			Msg("Project prompt truncated")
		data = data[:maxPromptBytes]
	}

	p.setPrompt(string(data))
	return nil
}

// Prompt returns the currently loaded project prompt
func (p *Project) Prompt() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}

func (p *Project) setPrompt(s string) {
	p.mu.Lock()
	p.prompt = s
	p.mu.Unlock()
}
