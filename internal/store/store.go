// Package store defines the row store contract: typed point reads,
// guarded updates, and atomic multi-statement batches. No caller builds
// query text; every mutation is expressed as a Statement value.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/denar-dev/denar/internal/model"
)

var (
	// ErrNotFound indicates a requested row is missing.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a uniqueness-constrained row already
	// exists.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrGuardFailed indicates a guarded statement's condition no longer
	// held at apply time (overdraw, credit score bound). The enclosing
	// batch is rolled back.
	ErrGuardFailed = errors.New("statement guard failed")
)

// Store persists accounts, loans, lottery tickets, and cycle markers.
type Store interface {
	GetAccount(ctx context.Context, name string) (model.Account, error)
	AccountExists(ctx context.Context, name string) (bool, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	GetLoan(ctx context.Context, id int64) (model.Loan, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
	ListAccountLoans(ctx context.Context, name string) ([]model.Loan, error)

	ListTickets(ctx context.Context) ([]model.LotteryTicket, error)

	// LastFired returns the persisted trigger timestamp for a named
	// cycle, or the zero time if the cycle has never fired.
	LastFired(ctx context.Context, cycle string) (time.Time, error)
	MarkFired(ctx context.Context, cycle string, at time.Time) error

	// Apply commits every statement in order as one transaction. Any
	// failure, including a guard violation, rolls back the whole batch.
	Apply(ctx context.Context, stmts ...Statement) error

	Close() error
}
