package tier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denar-dev/denar/internal/model"
)

func TestBaseLimits(t *testing.T) {
	tests := []struct {
		accountType model.AccountType
		rate        string
		limit       int64
	}{
		{model.AccountTypeChecking, "0.02", 512},
		{model.AccountTypeSavings, "0.04", 256},
		{model.AccountTypeBusiness, "0.02", 1024},
		{model.AccountTypeGovernment, "0.02", 3072},
		{model.AccountTypeOfficial, "0", 101376},
	}
	for _, tt := range tests {
		t.Run(string(tt.accountType), func(t *testing.T) {
			limits, err := BaseLimits(tt.accountType)
			require.NoError(t, err)
			want := decimal.NewFromInt(tt.limit)
			assert.True(t, limits.MaxWithdraw.Equal(want))
			assert.True(t, limits.MaxDeposit.Equal(want))
			assert.True(t, limits.MaxTransfer.Equal(want))
			assert.True(t, limits.InterestRate.Equal(decimal.RequireFromString(tt.rate)))
		})
	}
}

func TestBaseLimitsUnknownType(t *testing.T) {
	_, err := BaseLimits(model.AccountType("Margin"))
	require.Error(t, err)
}

func TestIncrement(t *testing.T) {
	assert.True(t, Increment(model.AccountTypeChecking).Equal(decimal.NewFromInt(160)))
	assert.True(t, Increment(model.AccountTypeSavings).Equal(decimal.NewFromInt(64)))
	assert.True(t, Increment(model.AccountTypeBusiness).Equal(decimal.NewFromInt(256)))
	assert.True(t, Increment(model.AccountTypeGovernment).Equal(decimal.NewFromInt(512)))
	assert.True(t, Increment(model.AccountTypeOfficial).Equal(decimal.NewFromInt(32)))
}

func TestTermsImproveWithScore(t *testing.T) {
	prev, err := Terms(MinCreditScore)
	require.NoError(t, err)
	for score := MinCreditScore + 1; score <= MaxCreditScore; score++ {
		terms, err := Terms(score)
		require.NoError(t, err)
		assert.True(t, terms.InterestRate.LessThan(prev.InterestRate),
			"interest should fall from score %d to %d", score-1, score)
		assert.True(t, terms.MinPayPercent.LessThanOrEqual(prev.MinPayPercent),
			"minimum payment should not rise from score %d to %d", score-1, score)
		prev = terms
	}
}

func TestTermsOutOfRange(t *testing.T) {
	_, err := Terms(MinCreditScore - 1)
	require.Error(t, err)
	_, err = Terms(MaxCreditScore + 1)
	require.Error(t, err)
}

func TestLateFeeFloors(t *testing.T) {
	terms, err := Terms(3)
	require.NoError(t, err)

	// 150 * 0.1 = 15 exactly.
	fee := LateFee(decimal.NewFromInt(150), terms)
	assert.True(t, fee.Equal(decimal.NewFromInt(15)))

	// 155 * 0.1 = 15.5, floored to 15.
	fee = LateFee(decimal.NewFromInt(155), terms)
	assert.True(t, fee.Equal(decimal.NewFromInt(15)))
}
