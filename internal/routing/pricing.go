package routing

import "math"

type modelRates struct {
	inputPerMillion  float64
	outputPerMillion float64
}

// Illustrative published rates, USD per million tokens.
var deepseekPricing = map[string]modelRates{
	ModelChat: {inputPerMillion: 0.27, outputPerMillion: 1.10},
	ModelV3:   {inputPerMillion: 0.27, outputPerMillion: 1.10},
	ModelR1:   {inputPerMillion: 0.55, outputPerMillion: 2.19},
}

// EstimateDeepseekCost returns the estimated USD cost for a call, rounded to
// 6 decimal places. Unknown model ids cost 0.0; this never errors.
func EstimateDeepseekCost(model string, tokensIn, tokensOut int) float64 {
	rates, ok := deepseekPricing[model]
	if !ok {
		return 0.0
	}
	costIn := float64(tokensIn) / 1e6 * rates.inputPerMillion
	costOut := float64(tokensOut) / 1e6 * rates.outputPerMillion
	return math.Round((costIn+costOut)*1e6) / 1e6
}
