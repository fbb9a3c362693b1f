// Package loan implements loan issuance, payment, and the bi-weekly
// accrual cycle.
package loan

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/gateway"
	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
	"github.com/denar-dev/denar/internal/tier"
)

// Locker serializes mutations touching the named accounts.
type Locker interface {
	Serialize(names []string, fn func() error) error
}

// Service provides loan operations over the row store. floatAccount is
// the operator float acting as the loan counterparty.
type Service struct {
	store          store.Store
	gw             gateway.Gateway
	locker         Locker
	floatAccount   string
	originationFee decimal.Decimal
	log            *zap.Logger
}

// NewService creates a loan Service.
func NewService(st store.Store, gw gateway.Gateway, locker Locker, floatAccount string, originationFee decimal.Decimal, log *zap.Logger) *Service {
	return &Service{
		store:          st,
		gw:             gw,
		locker:         locker,
		floatAccount:   floatAccount,
		originationFee: originationFee,
		log:            log,
	}
}

// Terms are the negotiable parameters of a loan.
type Terms struct {
	InterestRate  decimal.Decimal
	MinPayPercent decimal.Decimal
	LateFee       decimal.Decimal
}

// TierTerms derives loan terms from an account's credit score: tier
// rates, and a flat late fee floored from the principal.
func TierTerms(creditScore int, principal decimal.Decimal) (Terms, error) {
	tt, err := tier.Terms(creditScore)
	if err != nil {
		return Terms{}, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return Terms{
		InterestRate:  tt.InterestRate,
		MinPayPercent: tt.MinPayPercent,
		LateFee:       tier.LateFee(principal, tt),
	}, nil
}

// IssueStatements builds the staged issuance batch: insert the loan row
// (remaining = principal + origination fee), credit the borrower by the
// principal, debit the operator float by the principal. The batch is
// always staged through the approval queue, never applied directly.
func (s *Service) IssueStatements(account model.Account, principal decimal.Decimal, ownerID string, terms Terms) ([]store.Statement, error) {
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrValidation)
	}
	l := model.Loan{
		AccountName:     account.Name,
		InterestRate:    terms.InterestRate,
		OriginalAmount:  principal,
		AmountRemaining: principal.Add(s.originationFee),
		OwnerID:         ownerID,
		MinPayPercent:   terms.MinPayPercent,
		LateFee:         terms.LateFee,
	}
	return []store.Statement{
		store.InsertLoan{Loan: l},
		store.AdjustBalance{Name: account.Name, Delta: principal},
		store.AdjustBalance{Name: s.floatAccount, Delta: principal.Neg()},
	}, nil
}

// PayResult reports the outcome of a loan payment.
type PayResult struct {
	Remaining decimal.Decimal
	Settled   bool
}

// Pay debits the account, credits the operator float, and decrements the
// loan. A payment above the remaining amount is rejected; one below the
// minimum is rejected unless it fully settles the loan. A loan whose
// remainder drops below one denar is closed.
func (s *Service) Pay(ctx context.Context, account model.Account, loanID int64, amount decimal.Decimal) (PayResult, error) {
	if !amount.IsPositive() {
		return PayResult{}, fmt.Errorf("%w: payment must be positive", apperrors.ErrValidation)
	}

	var result PayResult
	err := s.locker.Serialize([]string{account.Name, s.floatAccount}, func() error {
		l, err := s.store.GetLoan(ctx, loanID)
		if err != nil || l.AccountName != account.Name {
			return fmt.Errorf("%w: loan %d on account %q", apperrors.ErrNotFound, loanID, account.Name)
		}
		if amount.GreaterThan(l.AmountRemaining) {
			return fmt.Errorf("%w: payment %s exceeds remaining %s",
				apperrors.ErrValidation, amount.StringFixed(2), l.AmountRemaining.StringFixed(2))
		}
		remaining := l.AmountRemaining.Sub(amount).Round(2)
		settles := remaining.LessThan(decimal.NewFromInt(1))
		if amount.LessThan(l.MinimumPayment()) && !settles {
			return fmt.Errorf("%w: minimum payment is %s",
				apperrors.ErrBelowMinimumPayment, l.MinimumPayment().StringFixed(2))
		}

		current, err := s.store.GetAccount(ctx, account.Name)
		if err != nil {
			return fmt.Errorf("%w: account %q", apperrors.ErrNotFound, account.Name)
		}
		if current.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, payment %s",
				apperrors.ErrInsufficientFunds, current.Balance.StringFixed(2), amount.StringFixed(2))
		}

		batch := []store.Statement{
			store.AdjustBalance{Name: account.Name, Delta: amount.Neg()},
			store.AdjustBalance{Name: s.floatAccount, Delta: amount},
		}
		if settles {
			batch = append(batch, store.DeleteLoan{ID: loanID})
		} else {
			batch = append(batch, store.UpdateLoan{ID: loanID, Remaining: remaining, Paid: true})
		}
		if err := s.store.Apply(ctx, batch...); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
		}
		result = PayResult{Remaining: remaining, Settled: settles}
		return nil
	})
	if err != nil {
		return PayResult{}, err
	}

	s.log.Info("loan payment",
		zap.Int64("loan", loanID),
		zap.String("account", account.Name),
		zap.String("amount", amount.StringFixed(2)),
		zap.Bool("settled", result.Settled))
	return result, nil
}

// AccrueCycle compounds interest on every open loan, adds the late fee
// when no payment was made this cycle, and resets the paid flag. The
// ledger mutation commits as one batch; borrower notifications are best
// effort and never roll it back.
func (s *Service) AccrueCycle(ctx context.Context) error {
	loans, err := s.store.ListLoans(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if len(loans) == 0 {
		return nil
	}

	type notice struct {
		ownerID string
		text    string
	}
	var (
		batch   []store.Statement
		notices []notice
	)
	for _, l := range loans {
		newAmount := l.AmountRemaining.Add(l.AmountRemaining.Mul(l.InterestRate)).Round(2)
		text := fmt.Sprintf("Your loan with ID %d has had its interest calculated. You now owe %s denars.",
			l.ID, newAmount.StringFixed(2))
		if !l.Paid {
			newAmount = newAmount.Add(l.LateFee)
			text = fmt.Sprintf("Your loan with ID %d has had its interest calculated. You did not pay this period, so a late fee of %s denars was added. You now owe %s denars.",
				l.ID, l.LateFee.StringFixed(2), newAmount.StringFixed(2))
		}
		batch = append(batch, store.UpdateLoan{ID: l.ID, Remaining: newAmount, Paid: false})
		notices = append(notices, notice{ownerID: l.OwnerID, text: text})
	}

	if err := s.store.Apply(ctx, batch...); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
	}
	s.log.Info("loan accrual applied", zap.Int("loans", len(loans)))

	for _, n := range notices {
		if err := s.gw.DirectMessage(ctx, n.ownerID, n.text); err != nil {
			s.log.Warn("accrual notification failed",
				zap.String("owner", n.ownerID), zap.Error(err))
		}
	}
	return nil
}
