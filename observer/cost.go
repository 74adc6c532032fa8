package observer

// ModelPricing holds per-million-token pricing for a model. CachedPerMillion
// applies to the prompt tokens the provider served from its prompt cache;
// those are billed at the cached rate instead of the input rate.
type ModelPricing struct {
	InputPerMillion  float64
	CachedPerMillion float64
	OutputPerMillion float64
}

// DefaultPricing contains pricing for the models engram ships with.
// Users can override or extend via [observer.pricing] in engram.toml.
var DefaultPricing = map[string]ModelPricing{
	// xAI
	"grok-4-1-fast-non-reasoning": {0.20, 0.05, 0.50},

	// Gemini
	"gemini-2.5-flash":      {0.15, 0.0375, 0.60},
	"gemini-2.5-flash-lite": {0.0, 0.0, 0.0},

	// Anthropic
	"claude-haiku-4-5": {1.00, 0.10, 5.00},

	// Voyage embeddings bill input tokens only.
	"voyage-3.5": {0.18, 0.18, 0.0},
}

// CostCalculator computes USD cost from token counts.
type CostCalculator struct {
	pricing map[string]ModelPricing
}

// NewCostCalculator creates a calculator with default pricing, optionally merged with overrides.
func NewCostCalculator(overrides map[string]ModelPricing) *CostCalculator {
	merged := make(map[string]ModelPricing, len(DefaultPricing)+len(overrides))
	for k, v := range DefaultPricing {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return &CostCalculator{pricing: merged}
}

// Calculate returns the cost in USD for the given model and token counts.
// inputTokens is the full prompt size; cachedTokens is the portion of it
// billed at the cached rate. Returns 0.0 for unknown models.
func (c *CostCalculator) Calculate(model string, inputTokens, cachedTokens, outputTokens int) float64 {
	p, ok := c.pricing[model]
	if !ok {
		return 0.0
	}
	fresh := inputTokens - cachedTokens
	if fresh < 0 {
		fresh = 0
	}
	return float64(fresh)/1_000_000*p.InputPerMillion +
		float64(cachedTokens)/1_000_000*p.CachedPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
}
