// Package cachecontrol decides which message blocks carry a prompt-cache
// marker, bounded by the provider's breakpoint ceiling.
package cachecontrol

import (
	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/pkg/message"
)

// DefaultBreakpoints is the provider ceiling on simultaneously active
// cache breakpoints.
const DefaultBreakpoints = 3

// Injector assigns cache-control markers to recent eligible messages
type Injector struct {
	breakpoints int
	logger      zerolog.Logger
}

// New creates an injector with the given breakpoint budget;
// zero or negative means DefaultBreakpoints.
func New(breakpoints int, logger zerolog.Logger) *Injector {
	if breakpoints <= 0 {
		breakpoints = DefaultBreakpoints
	}
	return &Injector{breakpoints: breakpoints, logger: logger}
}

// Inject rewrites the marker set in place: all existing markers are
// cleared, then the last block of each eligible message is marked walking
// newest to oldest until the budget runs out. The first message past the
// budget has any stale marker stripped and the walk stops. The result is a
// total function of the message list, so re-running is a no-op.
func (in *Injector) Inject(messages []message.Message) {
	for i := range messages {
		clearMarkers(&messages[i])
	}

	remaining := in.breakpoints
	marked := 0

	for i := len(messages) - 1; i >= 0; i-- {
		msg := &messages[i]
		if !eligible(msg) {
			continue
		}

		if remaining == 0 {
			// Already cleared above; one extra strip is enough because
			// prior runs never mark further back than the budget allows.
			break
		}

		msg.EnsureBlocks()
		if last := msg.LastBlock(); last != nil {
			last.CacheControl = message.Ephemeral()
			remaining--
			marked++
		}
	}

	in.logger.Debug().
		Int("messages", len(messages)).
		Int("marked", marked).
		Msg("Cache markers injected")
}

// eligible reports whether a message may carry a cache breakpoint:
// user messages, and assistant messages containing a tool-call block.
func eligible(msg *message.Message) bool {
	switch msg.Role {
	case message.RoleUser:
		return true
	case message.RoleAssistant:
		return msg.HasToolCall()
	}
	return false
}

func clearMarkers(msg *message.Message) {
	for i := range msg.Blocks {
		msg.Blocks[i].CacheControl = nil
	}
}
