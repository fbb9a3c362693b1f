// Package sqlite provides the SQLite-backed row store. Money fields are
// persisted as integer cents; rates as exact decimal strings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
	"github.com/denar-dev/denar/internal/store/sqlite/migrations"
)

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toCents(value decimal.Decimal) int64 {
	return value.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

const accountColumns = `name, password, type, balance_cents, interest_rate,
	max_withdraw_cents, max_deposit_cents, max_transfer_cents, credit_score,
	used_withdraw_cents, used_deposit_cents, used_transfer_cents`

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		a                                  model.Account
		balance, maxW, maxD, maxT          int64
		usedW, usedD, usedT                int64
		rate                               string
	)
	err := row.Scan(&a.Name, &a.Password, &a.Type, &balance, &rate,
		&maxW, &maxD, &maxT, &a.CreditScore, &usedW, &usedD, &usedT)
	if err != nil {
		return model.Account{}, err
	}
	parsedRate, err := decimal.NewFromString(rate)
	if err != nil {
		return model.Account{}, fmt.Errorf("parse interest rate %q: %w", rate, err)
	}
	a.Balance = fromCents(balance)
	a.InterestRate = parsedRate
	a.MaxWithdraw = fromCents(maxW)
	a.MaxDeposit = fromCents(maxD)
	a.MaxTransfer = fromCents(maxT)
	a.UsedWithdraw = fromCents(usedW)
	a.UsedDeposit = fromCents(usedD)
	a.UsedTransfer = fromCents(usedT)
	return a, nil
}

// GetAccount returns the account with the given name.
func (s *Store) GetAccount(ctx context.Context, name string) (model.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// AccountExists reports whether an account with the given name exists.
func (s *Store) AccountExists(ctx context.Context, name string) (bool, error) {
	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM accounts WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	return true, nil
}

// ListAccounts returns every account ordered by name.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

const loanColumns = `id, account_name, interest_rate, original_cents,
	remaining_cents, owner_id, min_pay_percent, late_fee_cents, paid`

func scanLoan(row interface{ Scan(...any) error }) (model.Loan, error) {
	var (
		l                            model.Loan
		original, remaining, lateFee int64
		rate, minPay                 string
		paid                         int
	)
	err := row.Scan(&l.ID, &l.AccountName, &rate, &original, &remaining,
		&l.OwnerID, &minPay, &lateFee, &paid)
	if err != nil {
		return model.Loan{}, err
	}
	parsedRate, err := decimal.NewFromString(rate)
	if err != nil {
		return model.Loan{}, fmt.Errorf("parse interest rate %q: %w", rate, err)
	}
	parsedMinPay, err := decimal.NewFromString(minPay)
	if err != nil {
		return model.Loan{}, fmt.Errorf("parse min pay percent %q: %w", minPay, err)
	}
	l.InterestRate = parsedRate
	l.OriginalAmount = fromCents(original)
	l.AmountRemaining = fromCents(remaining)
	l.MinPayPercent = parsedMinPay
	l.LateFee = fromCents(lateFee)
	l.Paid = paid != 0
	return l, nil
}

// GetLoan returns the loan with the given ID.
func (s *Store) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Loan{}, fmt.Errorf("loan %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

// ListLoans returns every open loan ordered by ID.
func (s *Store) ListLoans(ctx context.Context) ([]model.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY id`)
}

// ListAccountLoans returns the open loans owed by one account.
func (s *Store) ListAccountLoans(ctx context.Context, name string) ([]model.Loan, error) {
	return s.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE account_name = ? ORDER BY id`, name)
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]model.Loan, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// ListTickets returns every lottery ticket in purchase order.
func (s *Store) ListTickets(ctx context.Context) ([]model.LotteryTicket, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT account_name FROM lottery_tickets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.LotteryTicket
	for rows.Next() {
		var t model.LotteryTicket
		if err := rows.Scan(&t.AccountName); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// LastFired returns the persisted trigger timestamp for a named cycle,
// or the zero time if the cycle has never fired.
func (s *Store) LastFired(ctx context.Context, cycle string) (time.Time, error) {
	var ms int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT last_fired_ms FROM cycles WHERE name = ?`, cycle).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get cycle %q: %w", cycle, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// MarkFired records the trigger timestamp for a named cycle.
func (s *Store) MarkFired(ctx context.Context, cycle string, at time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cycles (name, last_fired_ms) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET last_fired_ms = excluded.last_fired_ms`,
		cycle, at.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark cycle %q: %w", cycle, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
