// Package tier maps account types and credit scores to daily limits and
// loan terms. All functions are pure.
package tier

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/denar-dev/denar/internal/model"
)

// Limits bundles the tier defaults applied to a new account.
type Limits struct {
	MaxWithdraw  decimal.Decimal
	MaxDeposit   decimal.Decimal
	MaxTransfer  decimal.Decimal
	InterestRate decimal.Decimal
}

// LoanTerms bundles the loan parameters derived from a credit score.
// LateFeeFraction is applied to the principal, floored, to produce the
// per-cycle late fee.
type LoanTerms struct {
	InterestRate    decimal.Decimal
	MinPayPercent   decimal.Decimal
	LateFeeFraction decimal.Decimal
}

const (
	// MinCreditScore and MaxCreditScore bound every account's score.
	MinCreditScore = 0
	MaxCreditScore = 6

	// DefaultCreditScore is assigned to new accounts.
	DefaultCreditScore = 3
)

type baseRow struct {
	rate  string
	limit int64
}

var baseTable = map[model.AccountType]baseRow{
	model.AccountTypeChecking:   {rate: "0.02", limit: 512},
	model.AccountTypeSavings:    {rate: "0.04", limit: 256},
	model.AccountTypeBusiness:   {rate: "0.02", limit: 1024},
	model.AccountTypeGovernment: {rate: "0.02", limit: 3072},

	// System accounts carry no interest and effectively unlimited caps.
	model.AccountTypeOfficial: {rate: "0", limit: 101376},
}

var incrementTable = map[model.AccountType]int64{
	model.AccountTypeChecking:   160,
	model.AccountTypeSavings:    64,
	model.AccountTypeBusiness:   256,
	model.AccountTypeGovernment: 512,
}

type termsRow struct {
	interest string
	minPay   string
}

// Indexed by credit score 0..6. Terms improve monotonically with score;
// the late-fee fraction tracks the interest rate.
var termsTable = [MaxCreditScore + 1]termsRow{
	{interest: "0.2", minPay: "0.15"},
	{interest: "0.15", minPay: "0.11"},
	{interest: "0.125", minPay: "0.09"},
	{interest: "0.1", minPay: "0.075"},
	{interest: "0.08", minPay: "0.06"},
	{interest: "0.07", minPay: "0.05"},
	{interest: "0.05", minPay: "0.05"},
}

// BaseLimits returns the default daily limits and interest rate for an
// account type.
func BaseLimits(t model.AccountType) (Limits, error) {
	row, ok := baseTable[t]
	if !ok {
		return Limits{}, fmt.Errorf("unknown account type %q", t)
	}
	limit := decimal.NewFromInt(row.limit)
	return Limits{
		MaxWithdraw:  limit,
		MaxDeposit:   limit,
		MaxTransfer:  limit,
		InterestRate: decimal.RequireFromString(row.rate),
	}, nil
}

// Increment returns the per-type delta applied to all three daily limits
// when a credit score changes by one step. The default covers types with
// no dedicated row.
func Increment(t model.AccountType) decimal.Decimal {
	if inc, ok := incrementTable[t]; ok {
		return decimal.NewFromInt(inc)
	}
	return decimal.NewFromInt(32)
}

// Terms returns the loan terms for a credit score.
func Terms(creditScore int) (LoanTerms, error) {
	if creditScore < MinCreditScore || creditScore > MaxCreditScore {
		return LoanTerms{}, fmt.Errorf("credit score %d out of range [%d,%d]", creditScore, MinCreditScore, MaxCreditScore)
	}
	row := termsTable[creditScore]
	interest := decimal.RequireFromString(row.interest)
	return LoanTerms{
		InterestRate:    interest,
		MinPayPercent:   decimal.RequireFromString(row.minPay),
		LateFeeFraction: interest,
	}, nil
}

// LateFee computes the flat late fee for a loan principal under the
// given terms: floor(principal * lateFeeFraction).
func LateFee(principal decimal.Decimal, terms LoanTerms) decimal.Decimal {
	return principal.Mul(terms.LateFeeFraction).Floor()
}
