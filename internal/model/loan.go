package model

import "github.com/shopspring/decimal"

// Loan represents a row in the loans relation. AmountRemaining includes
// the origination fee and accrued interest; the loan is closed once it
// drops below one denar.
type Loan struct {
	ID              int64
	AccountName     string
	InterestRate    decimal.Decimal
	OriginalAmount  decimal.Decimal
	AmountRemaining decimal.Decimal
	OwnerID         string // external identity notified on accrual
	MinPayPercent   decimal.Decimal
	LateFee         decimal.Decimal
	Paid            bool // payment made this cycle
}

// MinimumPayment returns the smallest payment accepted this cycle,
// rounded to two decimal places.
func (l Loan) MinimumPayment() decimal.Decimal {
	return l.AmountRemaining.Mul(l.MinPayPercent).Round(2)
}

// LotteryTicket represents a row in the lotteryTickets relation.
// Tickets are ephemeral and cleared on every draw.
type LotteryTicket struct {
	AccountName string
}
