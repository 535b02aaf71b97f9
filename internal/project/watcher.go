package project

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// PromptWatcher reloads the project prompt when the file changes on disk
type PromptWatcher struct {
	watcher   *fsnotify.Watcher
	project   *Project
	logger    zerolog.Logger
	stability time.Duration
	done      chan struct{}
	stopOnce  sync.Once

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewPromptWatcher creates a watcher for the project's prompt file
func NewPromptWatcher(p *Project, logger zerolog.Logger) (*PromptWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &PromptWatcher{
		watcher:   watcher,
		project:   p,
		logger:    logger,
		stability: 100 * time.Millisecond,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the prompts directory. Watching the directory
// rather than the file survives editors that replace on save.
func (w *PromptWatcher) Start() error {
	dir := filepath.Dir(w.project.PromptPath())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch prompts directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", dir).Msg("Prompt watcher started")
	return nil
}

// Stop stops the watcher
func (w *PromptWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *PromptWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Prompt watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *PromptWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != PromptFile {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Debounce rapid successive writes to one reload
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.stability, func() {
		select {
		case <-w.done:
			return
		default:
		}

		if err := w.project.Reload(); err != nil {
			w.logger.Error().Err(err).Msg("Failed to reload project prompt")
			return
		}
		w.logger.Debug().
			Int("prompt_bytes", len(w.project.Prompt())).
			Msg("Project prompt reloaded")
	})
}
