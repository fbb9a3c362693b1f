// Package lottery implements ticket pooling and the moderated winner
// draw. Ticket revenue splits between the pool account and the operator
// float house cut.
package lottery

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/denar-dev/denar/internal/errors"
	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
)

// Locker serializes mutations touching the named accounts.
type Locker interface {
	Serialize(names []string, fn func() error) error
}

// Service provides lottery operations over the row store.
type Service struct {
	store        store.Store
	locker       Locker
	poolAccount  string
	floatAccount string
	ticketCost   decimal.Decimal
	houseCut     decimal.Decimal // fraction of the ticket kept by the float
	pick         func(n int) int
	log          *zap.Logger
}

// NewService creates a lottery Service.
func NewService(st store.Store, locker Locker, poolAccount, floatAccount string, ticketCost, houseCut decimal.Decimal, log *zap.Logger) *Service {
	return &Service{
		store:        st,
		locker:       locker,
		poolAccount:  poolAccount,
		floatAccount: floatAccount,
		ticketCost:   ticketCost,
		houseCut:     houseCut,
		pick:         rand.Intn,
		log:          log,
	}
}

// BuyTicket sells one ticket to the account: debit the ticket cost,
// credit the pool with the cost minus the house cut, credit the float
// with the cut, and append one ticket row. All four effects commit as
// one unit or none.
func (s *Service) BuyTicket(ctx context.Context, account model.Account) error {
	return s.locker.Serialize([]string{account.Name, s.poolAccount, s.floatAccount}, func() error {
		current, err := s.store.GetAccount(ctx, account.Name)
		if err != nil {
			return fmt.Errorf("%w: account %q", apperrors.ErrNotFound, account.Name)
		}
		if current.Balance.LessThan(s.ticketCost) {
			return fmt.Errorf("%w: ticket costs %s",
				apperrors.ErrInsufficientFunds, s.ticketCost.StringFixed(2))
		}

		cut := s.ticketCost.Mul(s.houseCut).Round(2)
		poolShare := s.ticketCost.Sub(cut)
		batch := []store.Statement{
			store.AdjustBalance{Name: account.Name, Delta: s.ticketCost.Neg()},
			store.AdjustBalance{Name: s.poolAccount, Delta: poolShare},
			store.AdjustBalance{Name: s.floatAccount, Delta: cut},
			store.InsertTicket{AccountName: account.Name},
		}
		if err := s.store.Apply(ctx, batch...); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrBatchFailed, err)
		}
		s.log.Info("lottery ticket sold", zap.String("account", account.Name))
		return nil
	})
}

// Draw describes a prepared winner selection and the staged batch that
// applies it.
type Draw struct {
	Winner     string
	Prize      decimal.Decimal
	Statements []store.Statement
}

// PrepareDraw selects one ticket uniformly at random and builds the
// batch paying the full pool balance to its owner, zeroing the pool, and
// clearing every ticket. The batch is always staged through the approval
// queue, never applied directly.
func (s *Service) PrepareDraw(ctx context.Context) (Draw, error) {
	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return Draw{}, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if len(tickets) == 0 {
		return Draw{}, apperrors.ErrNoTickets
	}
	pool, err := s.store.GetAccount(ctx, s.poolAccount)
	if err != nil {
		return Draw{}, fmt.Errorf("%w: pool account %q", apperrors.ErrNotFound, s.poolAccount)
	}

	winner := tickets[s.pick(len(tickets))].AccountName
	prize := pool.Balance
	s.log.Info("lottery draw prepared",
		zap.String("winner", winner),
		zap.String("prize", prize.StringFixed(2)),
		zap.Int("tickets", len(tickets)))
	return Draw{
		Winner: winner,
		Prize:  prize,
		Statements: []store.Statement{
			store.AdjustBalance{Name: winner, Delta: prize},
			store.SetBalance{Name: s.poolAccount, Balance: decimal.Zero},
			store.ClearTickets{},
		},
	}, nil
}
