package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerAdd(t *testing.T) {
	tr := NewTracker("anthropic", "claude-3-5-sonnet-20241022")

	tr.Add(Usage{InputTokens: 10, OutputTokens: 5})
	tr.Add(Usage{InputTokens: 7, OutputTokens: 3})

	totals := tr.Totals()
	assert.Equal(t, 17, totals.InputTokens)
	assert.Equal(t, 8, totals.OutputTokens)
}

func TestTrackerCost(t *testing.T) {
	t.Run("known model uses published rates", func(t *testing.T) {
		tr := NewTracker("anthropic", "claude-3-5-sonnet-20241022")
		tr.Add(Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})

		cost := tr.Cost()
		assert.InDelta(t, 3.00, cost.Input, 1e-9)
		assert.InDelta(t, 15.00, cost.Output, 1e-9)
		assert.InDelta(t, 18.00, cost.Total, 1e-9)
	})

	t.Run("unknown model falls back to default rates", func(t *testing.T) {
		tr := NewTracker("anthropic", "experimental-model-x")
		tr.Add(Usage{InputTokens: 100, OutputTokens: 50})

		cost := tr.Cost()
		assert.Greater(t, cost.Total, 0.0)
	})

	t.Run("cache read priced at ten percent of input when unpublished", func(t *testing.T) {
		tr := NewTracker("openai", "gpt-4o")
		tr.Add(Usage{CacheReadTokens: 1_000_000})

		cost := tr.Cost()
		assert.InDelta(t, 0.25, cost.CacheRead, 1e-9)
	})

	t.Run("cost is memoized until the next add", func(t *testing.T) {
		tr := NewTracker("anthropic", "claude-3-5-sonnet-20241022")
		tr.Add(Usage{InputTokens: 100})

		first := tr.Cost()
		assert.Equal(t, first, tr.Cost())

		tr.Add(Usage{InputTokens: 100})
		second := tr.Cost()
		assert.Greater(t, second.Total, first.Total)
	})

	t.Run("zero usage has zero cost", func(t *testing.T) {
		tr := NewTracker("anthropic", "claude-3-5-sonnet-20241022")
		assert.Equal(t, 0.0, tr.Cost().Total)
	})
}

func TestEstimate(t *testing.T) {
	t.Run("roughly four characters per token", func(t *testing.T) {
		assert.Equal(t, 3, EstimateTokens("hello world!"))
		assert.Equal(t, 0, EstimateTokens(""))
		assert.Equal(t, 1, EstimateTokens("ab"))
	})

	t.Run("estimate carries the prompt baseline", func(t *testing.T) {
		u := Estimate("some output text here")
		require.Equal(t, defaultPromptBaseline, u.InputTokens)
		assert.Equal(t, EstimateTokens("some output text here"), u.OutputTokens)
	})
}
