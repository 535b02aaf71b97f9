package usage

// Usage holds token counts for one provider response
type Usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
}

// Add returns the element-wise sum of two usage records
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		CacheReadTokens:     u.CacheReadTokens + other.CacheReadTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
	}
}

// defaultPromptBaseline approximates prompt tokens when a provider reports
// no usage at all.
const defaultPromptBaseline = 200

// EstimateTokens approximates a token count from text length,
// at roughly one token per four characters.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Estimate builds a usage record from raw text when the provider response
// carries no usage figures.
func Estimate(outputText string) Usage {
	return Usage{
		InputTokens:  defaultPromptBaseline,
		OutputTokens: EstimateTokens(outputText),
	}
}

// Tracker accumulates token counters across the turns of one stream
// invocation. It is turn-scoped and not safe for concurrent use.
type Tracker struct {
	provider string
	model    string
	totals   Usage
	cost     *Cost
}

// NewTracker creates a tracker for the given provider and model
func NewTracker(provider, model string) *Tracker {
	return &Tracker{provider: provider, model: model}
}

// Provider returns the provider name the tracker accounts for
func (t *Tracker) Provider() string { return t.provider }

// Model returns the model name the tracker prices against
func (t *Tracker) Model() string { return t.model }

// Add accumulates one response's usage and invalidates the memoized cost
func (t *Tracker) Add(u Usage) {
	t.totals = t.totals.Add(u)
	t.cost = nil
}

// Totals returns the accumulated counters
func (t *Tracker) Totals() Usage {
	return t.totals
}

// Cost returns the cost breakdown for the accumulated counters,
// memoized until the next Add.
func (t *Tracker) Cost() Cost {
	if t.cost != nil {
		return *t.cost
	}
	cost := PricingFor(t.model).CostOf(t.totals)
	t.cost = &cost
	return cost
}
