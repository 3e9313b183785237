package app

import (
	"deepresearch/internal/ai"
	"deepresearch/internal/model"
)

// CostRate is the per-1K-token price pair for one model.
type CostRate struct {
	Input  float64
	Output float64
}

// UsageLedger turns token usage into a persisted Cost row. The rate table is
// copied at construction and read-only afterwards, so a session priced today
// keeps today's rates no matter how configuration changes later.
type UsageLedger struct {
	rates map[string]CostRate
}

func NewUsageLedger(rates map[string]CostRate) *UsageLedger {
	copied := make(map[string]CostRate, len(rates))
	for name, rate := range rates {
		copied[name] = rate
	}
	return &UsageLedger{rates: copied}
}

// Estimate derives the USD cost for one invocation:
// tokens/1000 * rate per direction. Unknown models fall back to the
// "default" entry; no entry at all prices to zero.
func (l *UsageLedger) Estimate(modelName string, usage ai.TokenUsage) float64 {
	rate, ok := l.rates[modelName]
	if !ok {
		rate, ok = l.rates["default"]
	}
	if !ok {
		return 0
	}
	return float64(usage.InputTokens)/1000*rate.Input +
		float64(usage.OutputTokens)/1000*rate.Output
}

// Record builds the Cost row for a single session's invocation. Each
// session's accounting is self-contained; chain totals are the caller's sum
// over the parent chain.
func (l *UsageLedger) Record(sessionID, modelName string, usage ai.TokenUsage) *model.ResearchCost {
	return &model.ResearchCost{
		SessionID:        sessionID,
		InputTokens:      usage.InputTokens,
		OutputTokens:     usage.OutputTokens,
		TotalTokens:      usage.Total(),
		EstimatedCostUSD: l.Estimate(modelName, usage),
		ModelName:        modelName,
	}
}
