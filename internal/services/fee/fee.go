// Package fee implements the estimated/actual cost formula from spec.md
// §4.8: a pure fixed-point calculation shared by the ESTIMATE and SETTLE
// transitions of the Stream Orchestrator (C8).
package fee

import "github.com/shopspring/decimal"

// Coefficients are the FEE_* configuration values from spec.md §6.
type Coefficients struct {
	Base  decimal.Decimal // FEE_BASE
	WIn   decimal.Decimal // FEE_W_IN
	WOut  decimal.Decimal // FEE_W_OUT
	Scale decimal.Decimal // FEE_SCALE (global_scale)
}

// Compute applies `((in*w_in)+(out*w_out)+base)*model_multiplier*global_scale`
// entirely in fixed-point decimal arithmetic.
func Compute(c Coefficients, inTokens, outTokens int64, modelMultiplier decimal.Decimal) decimal.Decimal {
	in := decimal.NewFromInt(inTokens).Mul(c.WIn)
	out := decimal.NewFromInt(outTokens).Mul(c.WOut)

	return in.Add(out).Add(c.Base).Mul(modelMultiplier).Mul(c.Scale)
}

// EstimateOutputTokens caps the agent's configured max_tokens at a hard
// ceiling so a misconfigured agent can't produce an unbounded freeze.
func EstimateOutputTokens(agentMaxTokens, cap int) int64 {
	if agentMaxTokens <= 0 || agentMaxTokens > cap {
		return int64(cap)
	}

	return int64(agentMaxTokens)
}

// EstimateInputTokens applies the k_in coefficient to a character count per
// spec.md §4.8 ("estimated_input_tokens ≈ utf8_char_count(...) * k_in").
func EstimateInputTokens(charCount int64, kIn float64) int64 {
	return int64(float64(charCount) * kIn)
}

// EstimateCompletionTokens is the orchestrator's fallback when a provider
// doesn't surface completion_tokens itself (spec.md §4.7): char_count * k.
func EstimateCompletionTokens(charCount int64, k float64) int64 {
	return int64(float64(charCount) * k)
}

// Penalty returns pct percent of estimate, used on a MOD_POST block
// (spec.md §4.6/§4.8: settle at MODERATION_PENALTY_PCT of the estimated
// cost rather than the actual consumption).
func Penalty(estimate decimal.Decimal, pct int) decimal.Decimal {
	return estimate.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
}
