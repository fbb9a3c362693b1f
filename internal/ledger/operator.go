package ledger

import (
	"context"
	"fmt"

	"github.com/denar-dev/denar/internal/approval"
	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/lottery"
	"github.com/denar-dev/denar/internal/store"
)

// BuyLotteryTicket sells one ticket to an authenticated account. The
// four-effect batch commits as one unit.
func (s *Service) BuyLotteryTicket(ctx context.Context, caller Caller, name, password string) error {
	account, err := s.bank.Authenticate(ctx, name, password)
	if err != nil {
		return err
	}
	if err := s.lottery.BuyTicket(ctx, account); err != nil {
		return err
	}
	s.audit(ctx, fmt.Sprintf("%s bought a lottery ticket for account %q.", caller.ID, name))
	return nil
}

// DrawLotteryWinner prepares a uniform draw and stages it for
// moderation. Operator only.
func (s *Service) DrawLotteryWinner(ctx context.Context, caller Caller) (lottery.Draw, string, error) {
	if err := s.requireOperator(caller); err != nil {
		return lottery.Draw{}, "", err
	}
	draw, err := s.lottery.PrepareDraw(ctx)
	if err != nil {
		return lottery.Draw{}, "", err
	}
	token, err := s.queue.Stage(ctx, approval.StageRequest{
		Statements: draw.Statements,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to end the lottery and pay out the pool.", caller.ID),
		SuccessText: fmt.Sprintf("The winner is account %q; they won %s denars!",
			draw.Winner, draw.Prize.StringFixed(2)),
		DenyText: "Lottery draw denied.",
	})
	if err != nil {
		return lottery.Draw{}, "", err
	}
	return draw, token, nil
}

// AdjustCreditScore stages a one-step credit score change, shifting the
// daily limits by the tier increment. Operator only. An out-of-range
// change is rejected outright, never clamped.
func (s *Service) AdjustCreditScore(ctx context.Context, caller Caller, name string, direction int) (string, error) {
	if err := s.requireOperator(caller); err != nil {
		return "", err
	}
	change, err := s.bank.CreditScoreChange(ctx, name, direction)
	if err != nil {
		return "", err
	}
	verb := "increase"
	if direction < 0 {
		verb = "decrease"
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: []store.Statement{change},
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to %s the credit score of account %q to %d.",
			caller.ID, verb, name, change.Score),
		SuccessText: "Credit score updated.",
		DenyText:    "Credit score update denied.",
	})
}

// EditAccountField stages an allow-listed account field update. Operator
// only; any field outside the allow-list is a ValidationError.
func (s *Service) EditAccountField(ctx context.Context, caller Caller, name, field, value string) (string, error) {
	if err := s.requireOperator(caller); err != nil {
		return "", err
	}
	if _, ok := store.AccountEditable[field]; !ok {
		return "", fmt.Errorf("%w: account field %q is not editable", apperrors.ErrValidation, field)
	}
	if _, err := s.bank.Get(ctx, name); err != nil {
		return "", err
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: []store.Statement{store.UpdateAccountField{Name: name, Field: field, Value: value}},
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to set %s of account %q to %s.",
			caller.ID, field, name, value),
		SuccessText: "Update completed.",
		DenyText:    "Update denied.",
	})
}

// EditLoanField stages an allow-listed loan field update. Operator only.
func (s *Service) EditLoanField(ctx context.Context, caller Caller, loanID int64, field, value string) (string, error) {
	if err := s.requireOperator(caller); err != nil {
		return "", err
	}
	if _, ok := store.LoanEditable[field]; !ok {
		return "", fmt.Errorf("%w: loan field %q is not editable", apperrors.ErrValidation, field)
	}
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return "", fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: []store.Statement{store.UpdateLoanField{ID: loanID, Field: field, Value: value}},
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to set %s of loan %d to %s.",
			caller.ID, field, loanID, value),
		SuccessText: "Update completed.",
		DenyText:    "Update denied.",
	})
}

// ResetUsageCounters zeroes every account's daily usage. This is the
// admin-override reset shared by the scheduler and operators; it applies
// directly, bypassing the admission gate.
func (s *Service) ResetUsageCounters(ctx context.Context) error {
	if err := s.bank.ResetUsage(ctx); err != nil {
		return err
	}
	s.audit(ctx, "Daily usage counters reset.")
	return nil
}

// RunAccrualCycle compounds loan interest (with late fees) and account
// balance interest. Invoked by the scheduler each accrual window, or by
// an operator out of band.
func (s *Service) RunAccrualCycle(ctx context.Context) error {
	if err := s.loans.AccrueCycle(ctx); err != nil {
		return err
	}
	if err := s.bank.AccrueInterest(ctx); err != nil {
		return err
	}
	s.audit(ctx, "Accrual cycle completed: loan interest, late fees, and account interest applied.")
	return nil
}
