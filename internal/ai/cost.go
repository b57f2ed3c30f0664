package ai

import (
	"math"

	"daily-digest/internal/model"
)

// USD per million tokens, input then output. Rough list prices used only for
// the generation cost estimate stored with each digest.
var pricing = map[string][2]float64{
	"openai":    {10, 30},
	"anthropic": {3, 15},
	"groq":      {0.59, 0.79},
	"google":    {0.075, 0.30},
}

// Cost converts usage into the digest's generation cost record.
func Cost(provider string, u Usage) model.GenerationCost {
	p := pricing[provider]
	usd := (float64(u.PromptTokens)*p[0] + float64(u.CompletionTokens)*p[1]) / 1e6
	return model.GenerationCost{
		TotalTokens:      u.Total(),
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		EstimatedCostUSD: math.Round(usd*1e6) / 1e6,
		Provider:         provider,
	}
}
