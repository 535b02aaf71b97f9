package usage

// Pricing holds per-million-token rates in USD for one model.
// A zero CacheReadPerMTok means the standard 10% of the input rate.
type Pricing struct {
	InputPerMTok         float64
	OutputPerMTok        float64
	CacheCreationPerMTok float64
	CacheReadPerMTok     float64
}

// Cost is a derived cost breakdown in USD
type Cost struct {
	Input         float64 `json:"input"`
	Output        float64 `json:"output"`
	CacheCreation float64 `json:"cache_creation"`
	CacheRead     float64 `json:"cache_read"`
	Total         float64 `json:"total"`
}

// defaultPricing is the fallback rate row for unknown models
var defaultPricing = Pricing{
	InputPerMTok:         3.00,
	OutputPerMTok:        15.00,
	CacheCreationPerMTok: 3.75,
}

// modelPricing maps known model names to their published rates
var modelPricing = map[string]Pricing{
	"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheCreationPerMTok: 3.75, CacheReadPerMTok: 0.30},
	"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheCreationPerMTok: 1.00, CacheReadPerMTok: 0.08},
	"claude-3-opus-20240229":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheCreationPerMTok: 18.75, CacheReadPerMTok: 1.50},
	"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4-turbo":                {InputPerMTok: 10.00, OutputPerMTok: 30.00},
}

// PricingFor returns the rate row for a model, falling back to the
// default row for unknown names.
func PricingFor(model string) Pricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return defaultPricing
}

// CostOf prices a usage record against this rate row
func (p Pricing) CostOf(u Usage) Cost {
	const mtok = 1_000_000

	cacheCreationRate := p.CacheCreationPerMTok
	if cacheCreationRate == 0 {
		cacheCreationRate = p.InputPerMTok
	}
	cacheReadRate := p.CacheReadPerMTok
	if cacheReadRate == 0 {
		cacheReadRate = p.InputPerMTok * 0.10
	}

	cost := Cost{
		Input:         float64(u.InputTokens) * p.InputPerMTok / mtok,
		Output:        float64(u.OutputTokens) * p.OutputPerMTok / mtok,
		CacheCreation: float64(u.CacheCreationTokens) * cacheCreationRate / mtok,
		CacheRead:     float64(u.CacheReadTokens) * cacheReadRate / mtok,
	}
	cost.Total = cost.Input + cost.Output + cost.CacheCreation + cost.CacheRead
	return cost
}
