package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRetention is how long an idle chat is kept before cleanup
const DefaultRetention = 30 * 24 * time.Hour

// Cleanup removes chats that have been idle longer than the retention
// window, on a cron schedule.
type Cleanup struct {
	store     Store
	retention time.Duration
	spec      string
	logger    zerolog.Logger
	cron      *cron.Cron
	entryID   cron.EntryID
}

// NewCleanup creates a cleanup job. Zero retention means DefaultRetention;
// an empty spec means daily.
func NewCleanup(store Store, retention time.Duration, spec string, logger zerolog.Logger) *Cleanup {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if spec == "" {
		spec = "@daily"
	}
	return &Cleanup{
		store:     store,
		retention: retention,
		spec:      spec,
		logger:    logger,
	}
}

// Start schedules the cleanup job
func (c *Cleanup) Start() error {
	if c.cron != nil {
		return fmt.Errorf("cleanup is already running")
	}

	c.cron = cron.New()
	entryID, err := c.cron.AddFunc(c.spec, func() {
		if _, err := c.RunNow(context.Background()); err != nil {
			c.logger.Error().Err(err).Msg("Chat cleanup failed")
		}
	})
	if err != nil {
		c.cron = nil
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.spec, err)
	}
	c.entryID = entryID
	c.cron.Start()

	c.logger.Info().
		Str("spec", c.spec).
		Dur("retention", c.retention).
		Msg("Chat cleanup scheduled")
	return nil
}

// Stop cancels the schedule; a run in progress finishes
func (c *Cleanup) Stop() {
	if c.cron == nil {
		return
	}
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.cron = nil
	c.logger.Info().Msg("Chat cleanup stopped")
}

// RunNow deletes stale chats immediately and returns how many were removed
func (c *Cleanup) RunNow(ctx context.Context) (int, error) {
	infos, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list chats: %w", err)
	}

	cutoff := time.Now().Add(-c.retention)
	deleted := 0

	for _, info := range infos {
		if info.UpdatedAt.After(cutoff) {
			continue
		}
		if err := c.store.Clear(ctx, info.ID); err != nil {
			c.logger.Warn().Err(err).Str("chat_id", info.ID).Msg("Failed to delete stale chat")
			continue
		}
		deleted++
		c.logger.Debug().Str("chat_id", info.ID).Msg("Stale chat deleted")
	}

	if deleted > 0 {
		c.logger.Info().Int("deleted", deleted).Msg("Cleaned up stale chats")
	}
	return deleted, nil
}
