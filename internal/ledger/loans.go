package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/denar-dev/denar/internal/approval"
	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/loan"
	"github.com/denar-dev/denar/internal/store"
)

// ApplyLoan stages a loan with terms derived from the account's credit
// score.
func (s *Service) ApplyLoan(ctx context.Context, caller Caller, name, password string, amount decimal.Decimal, reason string) (string, error) {
	if err := validAmount(amount); err != nil {
		return "", err
	}
	account, err := s.bank.Authenticate(ctx, name, password)
	if err != nil {
		return "", err
	}
	terms, err := loan.TierTerms(account.CreditScore, amount)
	if err != nil {
		return "", err
	}
	stmts, err := s.loans.IssueStatements(account, amount, caller.ID, terms)
	if err != nil {
		return "", err
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: stmts,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like a loan of %s denars on account %q (credit score %d). Reason: %s",
			caller.ID, amount.StringFixed(2), name, account.CreditScore, reason),
		SuccessText: "Loan approved!",
		DenyText:    "Loan denied. Message bank staff for more details.",
	})
}

// NegotiateLoan stages a loan with caller-proposed terms, left for the
// moderators to accept or haggle over. The terms are not checked
// against the account's tier.
func (s *Service) NegotiateLoan(ctx context.Context, caller Caller, name, password string, amount, rate, minPay, lateFee decimal.Decimal, reason string) (string, error) {
	if err := validAmount(amount); err != nil {
		return "", err
	}
	if !rate.IsPositive() || !minPay.IsPositive() || !lateFee.IsPositive() {
		return "", fmt.Errorf("%w: rate, minimum payment, and late fee must be positive", apperrors.ErrValidation)
	}
	account, err := s.bank.Authenticate(ctx, name, password)
	if err != nil {
		return "", err
	}
	terms := loan.Terms{InterestRate: rate, MinPayPercent: minPay, LateFee: lateFee}
	stmts, err := s.loans.IssueStatements(account, amount, caller.ID, terms)
	if err != nil {
		return "", err
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: stmts,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to negotiate a loan of %s denars on account %q (credit score %d): rate %s, minimum payment %s, late fee %s. Reason: %s",
			caller.ID, amount.StringFixed(2), name, account.CreditScore,
			rate.String(), minPay.String(), lateFee.StringFixed(2), reason),
		SuccessText: "Loan approved!",
		DenyText:    "Loan denied. Message bank staff for more details.",
	})
}

// PayLoan pays down a loan on an authenticated account.
func (s *Service) PayLoan(ctx context.Context, caller Caller, name, password string, loanID int64, amount decimal.Decimal) (loan.PayResult, error) {
	account, err := s.bank.Authenticate(ctx, name, password)
	if err != nil {
		return loan.PayResult{}, err
	}
	result, err := s.loans.Pay(ctx, account, loanID, amount)
	if err != nil {
		return loan.PayResult{}, err
	}
	s.audit(ctx, fmt.Sprintf("%s paid %s denars toward loan %d; %s denars remain.",
		caller.ID, amount.StringFixed(2), loanID, result.Remaining.StringFixed(2)))
	if result.Settled {
		if err := s.gw.Reply(ctx, caller.Origin, "Loan fully paid!"); err != nil {
			s.log.Warn("payoff notification failed", zap.Error(err))
		}
	}
	return result, nil
}

// DeleteLoan stages removal of a loan. Operator only.
func (s *Service) DeleteLoan(ctx context.Context, caller Caller, loanID int64, reason string) (string, error) {
	if err := s.requireOperator(caller); err != nil {
		return "", err
	}
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return "", fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: []store.Statement{store.DeleteLoan{ID: loanID}},
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to delete loan %d. Reason: %s",
			caller.ID, loanID, reason),
		SuccessText: "Loan deleted.",
		DenyText:    "Loan deletion denied.",
	})
}
