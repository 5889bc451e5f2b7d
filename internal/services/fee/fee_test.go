package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeAppliesFullFormula(t *testing.T) {
	c := Coefficients{
		Base:  decimal.NewFromFloat(0.5),
		WIn:   decimal.NewFromFloat(0.01),
		WOut:  decimal.NewFromFloat(0.03),
		Scale: decimal.NewFromFloat(1),
	}

	got := Compute(c, 100, 50, decimal.NewFromFloat(2))

	// (100*0.01 + 50*0.03 + 0.5) * 2 * 1 = (1 + 1.5 + 0.5) * 2 = 6
	require.True(t, decimal.NewFromFloat(6).Equal(got), "got %s", got)
}

func TestEstimateOutputTokensCapsAtCeiling(t *testing.T) {
	require.Equal(t, int64(4096), EstimateOutputTokens(0, 4096))
	require.Equal(t, int64(4096), EstimateOutputTokens(999999, 4096))
	require.Equal(t, int64(512), EstimateOutputTokens(512, 4096))
}

func TestPenaltyIsPercentOfEstimate(t *testing.T) {
	got := Penalty(decimal.NewFromInt(200), 10)
	require.True(t, decimal.NewFromInt(20).Equal(got))
}
