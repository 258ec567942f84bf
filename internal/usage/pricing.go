package usage

import "math"

// Rates are USD per 1K tokens.
type Rates struct {
	Input         float64 `json:"input"`
	Output        float64 `json:"output"`
	CacheCreation float64 `json:"cache_creation"`
	CacheRead     float64 `json:"cache_read"`
}

const DefaultModel = "claude-sonnet-4-20250514"

// Pricing maps model names to their token rates.
type Pricing map[string]Rates

// DefaultPricing is the rate table used when none is configured.
var DefaultPricing = Pricing{
	"claude-sonnet-4-20250514":   {Input: 0.015, Output: 0.075, CacheCreation: 0.0375, CacheRead: 0.00375},
	"claude-3-5-sonnet-20241022": {Input: 0.003, Output: 0.015, CacheCreation: 0.0075, CacheRead: 0.00075},
}

// RatesFor falls back to the default model for unknown names.
func (p Pricing) RatesFor(model string) Rates {
	if r, ok := p[model]; ok {
		return r
	}
	return p[DefaultModel]
}

// Cost prices a single message, rounded to 6 decimals.
func (p Pricing) Cost(m Message) float64 {
	r := p.RatesFor(m.Model)
	cost := float64(m.InputTokens)/1000*r.Input +
		float64(m.OutputTokens)/1000*r.Output +
		float64(m.CacheCreationTokens)/1000*r.CacheCreation +
		float64(m.CacheReadTokens)/1000*r.CacheRead
	return round6(cost)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
