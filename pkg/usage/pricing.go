package usage

import (
	"sort"
)

// Pricing holds the static per-model price points in dollars per million
// tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// priceTable is the static price table for known model tiers.
// Unknown models fall back to defaultPricing.
var priceTable = map[string]Pricing{
	"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.0-flash":      {InputPerMillion: 0.10, OutputPerMillion: 0.40},
}

// defaultPricing is used for models missing from the price table so cost
// estimates stay conservative rather than silently zero.
var defaultPricing = Pricing{InputPerMillion: 0.30, OutputPerMillion: 2.50}

// PricingFor returns the price points for a model tier.
func PricingFor(model string) Pricing {
	if p, ok := priceTable[model]; ok {
		return p
	}
	return defaultPricing
}

// KnownModels returns all model tiers in the price table, sorted.
func KnownModels() []string {
	models := make([]string, 0, len(priceTable))
	for model := range priceTable {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// EstimateTokens approximates a token count as ceil(len/4).
// This is a documented approximation, not a real tokenizer: it keeps cost
// estimates deterministic and dependency-free at roughly the right scale
// for English text.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// EstimateCost computes the dollar cost of a call from estimated token
// counts and the model's price points. Cached calls always cost zero.
func EstimateCost(model string, inputTokens, outputTokens int, cached bool) float64 {
	if cached {
		return 0
	}
	p := PricingFor(model)
	return float64(inputTokens)/1e6*p.InputPerMillion +
		float64(outputTokens)/1e6*p.OutputPerMillion
}
