package bank

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
	"github.com/denar-dev/denar/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, zaptest.NewLogger(t)), st
}

func TestCreateAppliesTierDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.True(t, got.MaxDeposit.Equal(decimal.NewFromInt(512)))
	assert.True(t, got.InterestRate.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, 3, got.CreditScore)
	assert.True(t, got.UsedDeposit.IsZero())
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Create(ctx, "", "pw", model.AccountTypeChecking)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = svc.Create(ctx, "alice", "pw", model.AccountTypeOfficial)
	assert.ErrorIs(t, err, apperrors.ErrInvalidType)

	err = svc.Create(ctx, "alice", "pw", model.AccountType("Margin"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidType)

	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))
	err = svc.Create(ctx, "alice", "other", model.AccountTypeSavings)
	assert.ErrorIs(t, err, apperrors.ErrNameTaken)
}

func TestEnsureSystemAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	system := map[string]string{"IMC": "float-pw", "Lottery": "pool-pw"}
	require.NoError(t, svc.EnsureSystemAccounts(ctx, system))

	imc, err := svc.Get(ctx, "IMC")
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeOfficial, imc.Type)
	assert.True(t, imc.InterestRate.IsZero())
	assert.True(t, imc.MaxDeposit.Equal(decimal.NewFromInt(101376)))

	// Idempotent: a second bootstrap leaves existing accounts alone.
	require.NoError(t, svc.EnsureSystemAccounts(ctx, system))
	again, err := svc.Get(ctx, "IMC")
	require.NoError(t, err)
	assert.Equal(t, "float-pw", again.Password)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	got, err := svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, badPass := svc.Authenticate(ctx, "alice", "wrong")
	_, badName := svc.Authenticate(ctx, "nobody", "pw")
	assert.ErrorIs(t, badPass, apperrors.ErrAuth)
	assert.ErrorIs(t, badName, apperrors.ErrAuth)
	assert.Equal(t, badPass.Error(), badName.Error(), "error must not reveal which credential failed")
}

func TestAdjustBalanceWithinLimit(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	amount := decimal.NewFromInt(500)
	adm, err := svc.AdjustBalance(ctx, "alice", amount, model.UsageDeposited, amount)
	require.NoError(t, err)
	assert.True(t, adm.Applied)

	got, err := st.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(amount))
	assert.True(t, got.UsedDeposit.Equal(amount))
}

func TestAdjustBalanceOverLimitStages(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	// 600 exceeds the Checking daily deposit limit of 512.
	amount := decimal.NewFromInt(600)
	adm, err := svc.AdjustBalance(ctx, "alice", amount, model.UsageDeposited, amount)
	require.NoError(t, err)
	assert.False(t, adm.Applied)
	require.Len(t, adm.Statements, 1)

	// Nothing moved; the returned batch is the staging payload.
	got, err := st.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.True(t, got.UsedDeposit.IsZero())

	adj, ok := adm.Statements[0].(store.AdjustBalance)
	require.True(t, ok)
	assert.True(t, adj.Delta.Equal(amount))
	assert.True(t, adj.UsageDelta.Equal(amount))
}

func TestAdjustBalanceCumulativeUsageGates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	first := decimal.NewFromInt(400)
	adm, err := svc.AdjustBalance(ctx, "alice", first, model.UsageDeposited, first)
	require.NoError(t, err)
	assert.True(t, adm.Applied)

	// 400 + 200 crosses 512 even though 200 alone would not.
	second := decimal.NewFromInt(200)
	adm, err = svc.AdjustBalance(ctx, "alice", second, model.UsageDeposited, second)
	require.NoError(t, err)
	assert.False(t, adm.Applied)
}

func TestAdjustBalanceInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	amount := decimal.NewFromInt(100)
	_, err := svc.AdjustBalance(ctx, "alice", amount.Neg(), model.UsageWithdrawn, amount)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
}

func TestAdjustBalanceUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	one := decimal.NewFromInt(1)
	_, err := svc.AdjustBalance(context.Background(), "ghost", one, model.UsageDeposited, one)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))
	require.NoError(t, st.Apply(ctx, store.SetBalance{Name: "alice", Balance: decimal.NewFromInt(100)}))

	// 20 racing withdrawals of 10 against a balance of 100: exactly 10
	// can succeed, the rest must fail cleanly inside the critical
	// section.
	const workers = 20
	amount := decimal.NewFromInt(10)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustBalance(ctx, "alice", amount.Neg(), model.UsageWithdrawn, amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 10, succeeded)

	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), "got %s", got.Balance)
	assert.False(t, got.Balance.IsNegative())
	assert.True(t, got.UsedWithdraw.Equal(decimal.NewFromInt(100)),
		"usage counts exactly the withdrawals that committed, got %s", got.UsedWithdraw)
}

func TestCreditScoreChange(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	stmt, err := svc.CreditScoreChange(ctx, "alice", +1)
	require.NoError(t, err)
	assert.Equal(t, 4, stmt.Score)
	assert.True(t, stmt.LimitDelta.Equal(decimal.NewFromInt(160)))

	require.NoError(t, st.Apply(ctx, stmt))
	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, got.CreditScore)
	assert.True(t, got.MaxWithdraw.Equal(decimal.NewFromInt(672)))

	down, err := svc.CreditScoreChange(ctx, "alice", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, down.Score)
	assert.True(t, down.LimitDelta.Equal(decimal.NewFromInt(-160)))
}

func TestCreditScoreChangeRejectsOutOfRange(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	// Walk the score up to the ceiling.
	for score := 4; score <= 6; score++ {
		stmt, err := svc.CreditScoreChange(ctx, "alice", +1)
		require.NoError(t, err)
		require.NoError(t, st.Apply(ctx, stmt))
	}

	_, err := svc.CreditScoreChange(ctx, "alice", +1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, got.CreditScore, "rejected change must not clamp or mutate")
}

func TestAccrueInterest(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))
	require.NoError(t, svc.Create(ctx, "bob", "pw", model.AccountTypeSavings))

	require.NoError(t, st.Apply(ctx,
		store.SetBalance{Name: "alice", Balance: decimal.NewFromInt(100)},
		store.SetBalance{Name: "bob", Balance: decimal.NewFromInt(100)}))

	require.NoError(t, svc.AccrueInterest(ctx))

	alice, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, alice.Balance.Equal(decimal.NewFromInt(102)), "got %s", alice.Balance)

	bob, err := svc.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, bob.Balance.Equal(decimal.NewFromInt(104)), "got %s", bob.Balance)
}

func TestResetUsage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "alice", "pw", model.AccountTypeChecking))

	amount := decimal.NewFromInt(100)
	_, err := svc.AdjustBalance(ctx, "alice", amount, model.UsageDeposited, amount)
	require.NoError(t, err)

	require.NoError(t, svc.ResetUsage(ctx))

	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.UsedDeposit.IsZero())
	assert.True(t, got.Balance.Equal(amount))

	// The full limit is available again.
	adm, err := svc.AdjustBalance(ctx, "alice", amount, model.UsageDeposited, amount)
	require.NoError(t, err)
	assert.True(t, adm.Applied)
}
