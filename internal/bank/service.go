// Package bank implements account CRUD and the admission-controlled
// balance mutation at the heart of the ledger: within the rolling daily
// limit a change commits immediately, past it the change is handed back
// as a staged batch instead of being rejected.
package bank

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
	"github.com/denar-dev/denar/internal/tier"
)

// Service provides account operations over the row store.
type Service struct {
	store store.Store
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a bank Service.
func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex serializing mutations of one account.
func (s *Service) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// lockAccounts acquires the locks for the given accounts in sorted order
// and returns the release function.
func (s *Service) lockAccounts(names ...string) func() {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	locks := make([]*sync.Mutex, 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, n := range sorted {
		if seen[n] {
			continue
		}
		seen[n] = true
		locks = append(locks, s.lockFor(n))
	}
	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// Serialize runs fn while holding the locks for the named accounts,
// giving multi-account mutations the same end-to-end critical section as
// the gated balance adjustment.
func (s *Service) Serialize(names []string, fn func() error) error {
	unlock := s.lockAccounts(names...)
	defer unlock()
	return fn()
}

// Create initializes a new customer account with tier defaults, credit
// score 3, zero balance and usage.
func (s *Service) Create(ctx context.Context, name, password string, accType model.AccountType) error {
	if name == "" || password == "" {
		return fmt.Errorf("%w: name and password are required", apperrors.ErrValidation)
	}
	if !model.ValidCustomerType(accType) {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidType, accType)
	}
	exists, err := s.store.AccountExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", apperrors.ErrNameTaken, name)
	}

	limits, err := tier.BaseLimits(accType)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidType, err)
	}
	account := model.Account{
		Name:         name,
		Password:     password,
		Type:         accType,
		Balance:      decimal.Zero,
		InterestRate: limits.InterestRate,
		MaxWithdraw:  limits.MaxWithdraw,
		MaxDeposit:   limits.MaxDeposit,
		MaxTransfer:  limits.MaxTransfer,
		CreditScore:  tier.DefaultCreditScore,
	}
	if err := s.store.Apply(ctx, store.InsertAccount{Account: account}); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	s.log.Info("account created",
		zap.String("name", name), zap.String("type", string(accType)))
	return nil
}

// EnsureSystemAccounts creates the operator float and lottery pool
// accounts on first startup if absent: Official type, zero balance,
// maximal limits.
func (s *Service) EnsureSystemAccounts(ctx context.Context, accounts map[string]string) error {
	limits, err := tier.BaseLimits(model.AccountTypeOfficial)
	if err != nil {
		return err
	}
	for name, password := range accounts {
		exists, err := s.store.AccountExists(ctx, name)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
		}
		if exists {
			continue
		}
		account := model.Account{
			Name:         name,
			Password:     password,
			Type:         model.AccountTypeOfficial,
			Balance:      decimal.Zero,
			InterestRate: limits.InterestRate,
			MaxWithdraw:  limits.MaxWithdraw,
			MaxDeposit:   limits.MaxDeposit,
			MaxTransfer:  limits.MaxTransfer,
			CreditScore:  tier.DefaultCreditScore,
		}
		if err := s.store.Apply(ctx, store.InsertAccount{Account: account}); err != nil {
			return fmt.Errorf("creating system account %q: %w", name, err)
		}
		s.log.Info("system account created", zap.String("name", name))
	}
	return nil
}

// Authenticate verifies the name/password pair and returns the account.
// The error never reveals which of the two was wrong.
func (s *Service) Authenticate(ctx context.Context, name, password string) (model.Account, error) {
	account, err := s.store.GetAccount(ctx, name)
	if err != nil {
		s.log.Info("authentication failed", zap.String("name", name))
		return model.Account{}, apperrors.ErrAuth
	}
	if account.Password != password {
		s.log.Info("authentication failed", zap.String("name", name))
		return model.Account{}, apperrors.ErrAuth
	}
	return account, nil
}

// Get returns an account without a credential check. Used by the
// operator profile view and internal flows.
func (s *Service) Get(ctx context.Context, name string) (model.Account, error) {
	account, err := s.store.GetAccount(ctx, name)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: account %q", apperrors.ErrNotFound, name)
	}
	return account, nil
}

// Admission is the outcome of a gated mutation: either the batch was
// committed, or it must be staged for moderation.
type Admission struct {
	Applied    bool
	Statements []store.Statement
}

// AdjustBalance runs the admission-controlled mutation. The balance
// delta, its usage increment, and any sibling statements form one batch.
// Within the daily limit the batch commits immediately inside a
// per-account critical section; past the limit the untouched batch is
// returned for staging. A debit that exceeds the current balance fails
// with InsufficientFunds either way.
func (s *Service) AdjustBalance(ctx context.Context, name string, delta decimal.Decimal, usage model.UsageField, usageDelta decimal.Decimal, siblings ...store.Statement) (Admission, error) {
	names := []string{name}
	for _, sib := range siblings {
		if adj, ok := sib.(store.AdjustBalance); ok {
			names = append(names, adj.Name)
		}
	}
	unlock := s.lockAccounts(names...)
	defer unlock()

	account, err := s.store.GetAccount(ctx, name)
	if err != nil {
		return Admission{}, fmt.Errorf("%w: account %q", apperrors.ErrNotFound, name)
	}

	if delta.IsNegative() && account.Balance.Add(delta).IsNegative() {
		return Admission{}, fmt.Errorf("%w: balance %s, requested %s",
			apperrors.ErrInsufficientFunds, account.Balance.StringFixed(2), delta.Abs().StringFixed(2))
	}

	batch := append([]store.Statement{store.AdjustBalance{
		Name:       name,
		Delta:      delta,
		UsageField: usage,
		UsageDelta: usageDelta,
	}}, siblings...)

	if account.Usage(usage).Add(usageDelta).GreaterThan(account.Limit(usage)) {
		return Admission{Applied: false, Statements: batch}, nil
	}

	if err := s.store.Apply(ctx, batch...); err != nil {
		return Admission{}, fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
	}
	s.log.Info("balance adjusted",
		zap.String("name", name),
		zap.String("delta", delta.StringFixed(2)),
		zap.String("usage", string(usage)))
	return Admission{Applied: true, Statements: batch}, nil
}

// CreditScoreChange validates a one-step score change and returns the
// statement carrying it. Raising above the maximum or lowering below the
// minimum is rejected, not clamped; an accepted change shifts all three
// daily limits by the type increment in the same direction.
func (s *Service) CreditScoreChange(ctx context.Context, name string, direction int) (store.SetCreditScore, error) {
	if direction != 1 && direction != -1 {
		return store.SetCreditScore{}, fmt.Errorf("%w: direction must be +1 or -1", apperrors.ErrValidation)
	}
	account, err := s.store.GetAccount(ctx, name)
	if err != nil {
		return store.SetCreditScore{}, fmt.Errorf("%w: account %q", apperrors.ErrNotFound, name)
	}
	next := account.CreditScore + direction
	if next > tier.MaxCreditScore {
		return store.SetCreditScore{}, fmt.Errorf("%w: cannot raise credit score past %d", apperrors.ErrValidation, tier.MaxCreditScore)
	}
	if next < tier.MinCreditScore {
		return store.SetCreditScore{}, fmt.Errorf("%w: cannot lower credit score below %d", apperrors.ErrValidation, tier.MinCreditScore)
	}
	delta := tier.Increment(account.Type)
	if direction < 0 {
		delta = delta.Neg()
	}
	return store.SetCreditScore{Name: name, Score: next, LimitDelta: delta}, nil
}

// AccrueInterest compounds each account's balance by its interest rate,
// independent of loans, as one atomic batch.
func (s *Service) AccrueInterest(ctx context.Context) error {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	var batch []store.Statement
	for _, a := range accounts {
		if a.InterestRate.IsZero() || a.Balance.IsZero() {
			continue
		}
		newBalance := a.Balance.Add(a.Balance.Mul(a.InterestRate)).Round(2)
		batch = append(batch, store.SetBalance{Name: a.Name, Balance: newBalance})
	}
	if len(batch) == 0 {
		return nil
	}
	if err := s.store.Apply(ctx, batch...); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
	}
	s.log.Info("balance interest accrued", zap.Int("accounts", len(batch)))
	return nil
}

// ResetUsage zeroes every account's daily usage counters. This is the
// admin-override entry point and does not pass through the admission gate.
func (s *Service) ResetUsage(ctx context.Context) error {
	if err := s.store.Apply(ctx, store.ResetUsage{}); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	s.log.Info("daily usage counters reset")
	return nil
}
