// Package ledger is the facade orchestrating accounts, loans, lottery,
// and the approval queue in response to validated chat commands.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/denar-dev/denar/internal/approval"
	"github.com/denar-dev/denar/internal/bank"
	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/gateway"
	"github.com/denar-dev/denar/internal/loan"
	"github.com/denar-dev/denar/internal/lottery"
	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
)

// Caller identifies who issued a command and which message to reply to.
type Caller struct {
	ID     string
	Origin gateway.Handle
}

// Status reports whether a gated mutation committed or was staged.
type Status string

const (
	StatusApplied Status = "applied"
	StatusPending Status = "pending"
)

// Receipt is the outcome of a gated mutation. Token is set only for
// staged mutations.
type Receipt struct {
	Status Status
	Token  string
}

// Policy carries the facade's wiring configuration.
type Policy struct {
	ModerationChannel string
	AuditChannel      string
	FloatAccount      string
	PoolAccount       string
	Operators         []string
}

// Service is the ledger facade.
type Service struct {
	bank    *bank.Service
	loans   *loan.Service
	lottery *lottery.Service
	queue   *approval.Queue
	store   store.Store
	gw      gateway.Gateway
	policy  Policy
	ops     map[string]bool
	log     *zap.Logger
}

// NewService wires the facade.
func NewService(b *bank.Service, l *loan.Service, lot *lottery.Service, q *approval.Queue, st store.Store, gw gateway.Gateway, policy Policy, log *zap.Logger) *Service {
	ops := make(map[string]bool, len(policy.Operators))
	for _, id := range policy.Operators {
		ops[id] = true
	}
	return &Service{
		bank:    b,
		loans:   l,
		lottery: lot,
		queue:   q,
		store:   st,
		gw:      gw,
		policy:  policy,
		ops:     ops,
		log:     log,
	}
}

func (s *Service) requireOperator(caller Caller) error {
	if !s.ops[caller.ID] {
		return fmt.Errorf("%w: %q is not an operator", apperrors.ErrPermissionDenied, caller.ID)
	}
	return nil
}

// audit posts a line to the audit channel; failures are logged, never
// surfaced.
func (s *Service) audit(ctx context.Context, text string) {
	if _, err := s.gw.Send(ctx, s.policy.AuditChannel, text); err != nil {
		s.log.Warn("audit notification failed", zap.Error(err))
	}
}

// CreateAccount opens a customer account with tier defaults.
func (s *Service) CreateAccount(ctx context.Context, caller Caller, name, password string, accType model.AccountType) error {
	if err := s.bank.Create(ctx, name, password, accType); err != nil {
		return err
	}
	s.audit(ctx, fmt.Sprintf("%s opened a %s account named %q.", caller.ID, accType, name))
	return nil
}

// DeleteAccount stages account deletion for moderation; it is never
// applied directly.
func (s *Service) DeleteAccount(ctx context.Context, caller Caller, name, password, reason string) (string, error) {
	if _, err := s.bank.Authenticate(ctx, name, password); err != nil {
		return "", err
	}
	return s.queue.Stage(ctx, approval.StageRequest{
		Statements: []store.Statement{store.DeleteAccount{Name: name}},
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to delete account %q. Reason: %s",
			caller.ID, name, reason),
		SuccessText: "Account deleted.",
		DenyText:    "Account deletion denied. Message bank staff for more details.",
	})
}

// BalanceInfo is the customer projection of an account.
type BalanceInfo struct {
	Account model.Account
	Loans   []model.Loan
}

// GetBalance returns the balance and open loans of an authenticated
// account.
func (s *Service) GetBalance(ctx context.Context, name, password string) (BalanceInfo, error) {
	account, err := s.bank.Authenticate(ctx, name, password)
	if err != nil {
		return BalanceInfo{}, err
	}
	loans, err := s.store.ListAccountLoans(ctx, name)
	if err != nil {
		return BalanceInfo{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return BalanceInfo{Account: account, Loans: loans}, nil
}

// GetProfile returns the full account projection without a password
// check. Operator only; existence is still checked.
func (s *Service) GetProfile(ctx context.Context, caller Caller, name string) (BalanceInfo, error) {
	if err := s.requireOperator(caller); err != nil {
		return BalanceInfo{}, err
	}
	account, err := s.bank.Get(ctx, name)
	if err != nil {
		return BalanceInfo{}, err
	}
	loans, err := s.store.ListAccountLoans(ctx, name)
	if err != nil {
		return BalanceInfo{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return BalanceInfo{Account: account, Loans: loans}, nil
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrValidation)
	}
	return nil
}

// Deposit credits the account, committing within the daily limit and
// staging past it.
func (s *Service) Deposit(ctx context.Context, caller Caller, name, password string, amount decimal.Decimal, sourceID string) (Receipt, error) {
	if err := validAmount(amount); err != nil {
		return Receipt{}, err
	}
	if _, err := s.bank.Authenticate(ctx, name, password); err != nil {
		return Receipt{}, err
	}
	adm, err := s.bank.AdjustBalance(ctx, name, amount, model.UsageDeposited, amount)
	if err != nil {
		return Receipt{}, err
	}
	if adm.Applied {
		s.audit(ctx, fmt.Sprintf("%s deposited %s denars into account %q at %s.",
			caller.ID, amount.StringFixed(2), name, sourceID))
		return Receipt{Status: StatusApplied}, nil
	}
	token, err := s.queue.Stage(ctx, approval.StageRequest{
		Statements: adm.Statements,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to deposit %s denars into account %q at %s.",
			caller.ID, amount.StringFixed(2), name, sourceID),
		SuccessText: "Deposit completed.",
		DenyText:    "Deposit denied. Message bank staff for more details.",
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Status: StatusPending, Token: token}, nil
}

// Withdraw debits the account, committing within the daily limit and
// staging past it. Fails with InsufficientFunds before staging if the
// balance cannot cover the amount.
func (s *Service) Withdraw(ctx context.Context, caller Caller, name, password string, amount decimal.Decimal, sourceID string) (Receipt, error) {
	if err := validAmount(amount); err != nil {
		return Receipt{}, err
	}
	if _, err := s.bank.Authenticate(ctx, name, password); err != nil {
		return Receipt{}, err
	}
	adm, err := s.bank.AdjustBalance(ctx, name, amount.Neg(), model.UsageWithdrawn, amount)
	if err != nil {
		return Receipt{}, err
	}
	if adm.Applied {
		s.audit(ctx, fmt.Sprintf("%s withdrew %s denars from account %q at %s.",
			caller.ID, amount.StringFixed(2), name, sourceID))
		return Receipt{Status: StatusApplied}, nil
	}
	token, err := s.queue.Stage(ctx, approval.StageRequest{
		Statements: adm.Statements,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to withdraw %s denars from account %q at %s.",
			caller.ID, amount.StringFixed(2), name, sourceID),
		SuccessText: "Withdrawal completed.",
		DenyText:    "Withdrawal denied. Message bank staff for more details.",
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Status: StatusPending, Token: token}, nil
}

// Transfer moves funds between accounts as one batch, committing within
// the sender's daily transfer limit and staging past it.
func (s *Service) Transfer(ctx context.Context, caller Caller, name, password, recipient string, amount decimal.Decimal) (Receipt, error) {
	if err := validAmount(amount); err != nil {
		return Receipt{}, err
	}
	if name == recipient {
		return Receipt{}, fmt.Errorf("%w: cannot transfer to the same account", apperrors.ErrValidation)
	}
	if _, err := s.bank.Authenticate(ctx, name, password); err != nil {
		return Receipt{}, err
	}
	exists, err := s.store.AccountExists(ctx, recipient)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if !exists {
		return Receipt{}, fmt.Errorf("%w: recipient %q", apperrors.ErrNotFound, recipient)
	}

	adm, err := s.bank.AdjustBalance(ctx, name, amount.Neg(), model.UsageTransferred, amount,
		store.AdjustBalance{Name: recipient, Delta: amount})
	if err != nil {
		return Receipt{}, err
	}
	if adm.Applied {
		s.audit(ctx, fmt.Sprintf("%s transferred %s denars from account %q to account %q.",
			caller.ID, amount.StringFixed(2), name, recipient))
		return Receipt{Status: StatusApplied}, nil
	}
	token, err := s.queue.Stage(ctx, approval.StageRequest{
		Statements: adm.Statements,
		Requester:  caller.ID,
		Origin:     caller.Origin,
		PromptText: fmt.Sprintf("%s would like to transfer %s denars from account %q to account %q.",
			caller.ID, amount.StringFixed(2), name, recipient),
		SuccessText: "Transfer completed.",
		DenyText:    "Transfer denied. Message bank staff for more details.",
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Status: StatusPending, Token: token}, nil
}

// Resolve consumes a confirmation token with the given outcome.
// Redelivered or unknown tokens are silent no-ops.
func (s *Service) Resolve(ctx context.Context, token string, outcome gateway.Outcome) error {
	return s.queue.Resolve(ctx, token, outcome)
}

// ResolveSignal maps a moderator reaction on a prompt handle onto its
// token.
func (s *Service) ResolveSignal(ctx context.Context, prompt gateway.Handle, actor string, outcome gateway.Outcome) error {
	return s.queue.ResolveSignal(ctx, prompt, actor, outcome)
}
