package store

import (
	"github.com/shopspring/decimal"

	"github.com/denar-dev/denar/internal/model"
)

// Statement is one typed ledger mutation. Statements are grouped into
// batches and applied atomically by Store.Apply; a staged batch waits in
// the approval queue between construction and application.
type Statement interface {
	isStatement()
}

// InsertAccount creates an account row.
type InsertAccount struct {
	Account model.Account
}

// DeleteAccount removes an account row by name.
type DeleteAccount struct {
	Name string
}

// AdjustBalance applies a signed balance delta and optionally increments
// one usage counter. Guarded: fails the batch if the resulting balance
// would be negative.
type AdjustBalance struct {
	Name       string
	Delta      decimal.Decimal
	UsageField model.UsageField // empty = no usage change
	UsageDelta decimal.Decimal
}

// SetBalance overwrites an account balance. Used by accrual and the
// lottery pool zeroing; not guarded.
type SetBalance struct {
	Name    string
	Balance decimal.Decimal
}

// SetCreditScore writes a new credit score and shifts all three daily
// limits by LimitDelta. Guarded: fails the batch if the score is outside
// the allowed range.
type SetCreditScore struct {
	Name       string
	Score      int
	LimitDelta decimal.Decimal // signed, applied to all three limits
}

// ResetUsage zeroes the daily usage counters for every account.
type ResetUsage struct{}

// UpdateAccountField sets one allow-listed account column from a string
// value, type-coerced by the store.
type UpdateAccountField struct {
	Name  string
	Field string
	Value string
}

// InsertLoan creates a loan row. The assigned ID is only visible on a
// subsequent read; staged issuance does not need it.
type InsertLoan struct {
	Loan model.Loan
}

// UpdateLoan overwrites a loan's remaining amount and paid flag.
type UpdateLoan struct {
	ID        int64
	Remaining decimal.Decimal
	Paid      bool
}

// DeleteLoan removes a loan row by ID.
type DeleteLoan struct {
	ID int64
}

// UpdateLoanField sets one allow-listed loan column from a string value,
// type-coerced by the store.
type UpdateLoanField struct {
	ID    int64
	Field string
	Value string
}

// InsertTicket appends one lottery ticket row.
type InsertTicket struct {
	AccountName string
}

// ClearTickets deletes every lottery ticket row.
type ClearTickets struct{}

func (InsertAccount) isStatement()      {}
func (DeleteAccount) isStatement()      {}
func (AdjustBalance) isStatement()      {}
func (SetBalance) isStatement()         {}
func (SetCreditScore) isStatement()     {}
func (ResetUsage) isStatement()         {}
func (UpdateAccountField) isStatement() {}
func (InsertLoan) isStatement()         {}
func (UpdateLoan) isStatement()         {}
func (DeleteLoan) isStatement()         {}
func (UpdateLoanField) isStatement()    {}
func (InsertTicket) isStatement()       {}
func (ClearTickets) isStatement()       {}
