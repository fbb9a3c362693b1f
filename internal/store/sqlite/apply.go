package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/denar-dev/denar/internal/model"
	"github.com/denar-dev/denar/internal/store"
)

// Apply commits every statement in order as one transaction. Any error,
// including a guard violation, rolls back the whole batch.
func (s *Store) Apply(ctx context.Context, stmts ...store.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	for i, stmt := range stmts {
		if err := applyStatement(ctx, tx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func applyStatement(ctx context.Context, tx *sql.Tx, stmt store.Statement) error {
	switch st := stmt.(type) {
	case store.InsertAccount:
		return insertAccount(ctx, tx, st.Account)
	case store.DeleteAccount:
		return expectOneRow(tx.ExecContext(ctx,
			`DELETE FROM accounts WHERE name = ?`, st.Name))
	case store.AdjustBalance:
		return adjustBalance(ctx, tx, st)
	case store.SetBalance:
		return expectOneRow(tx.ExecContext(ctx,
			`UPDATE accounts SET balance_cents = ? WHERE name = ?`,
			toCents(st.Balance), st.Name))
	case store.SetCreditScore:
		return setCreditScore(ctx, tx, st)
	case store.ResetUsage:
		_, err := tx.ExecContext(ctx,
			`UPDATE accounts SET used_withdraw_cents = 0,
			        used_deposit_cents = 0, used_transfer_cents = 0`)
		return err
	case store.UpdateAccountField:
		return updateAccountField(ctx, tx, st)
	case store.InsertLoan:
		return insertLoan(ctx, tx, st.Loan)
	case store.UpdateLoan:
		return expectOneRow(tx.ExecContext(ctx,
			`UPDATE loans SET remaining_cents = ?, paid = ? WHERE id = ?`,
			toCents(st.Remaining), boolInt(st.Paid), st.ID))
	case store.DeleteLoan:
		return expectOneRow(tx.ExecContext(ctx,
			`DELETE FROM loans WHERE id = ?`, st.ID))
	case store.UpdateLoanField:
		return updateLoanField(ctx, tx, st)
	case store.InsertTicket:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lottery_tickets (account_name) VALUES (?)`, st.AccountName)
		return err
	case store.ClearTickets:
		_, err := tx.ExecContext(ctx, `DELETE FROM lottery_tickets`)
		return err
	default:
		return fmt.Errorf("unsupported statement type %T", stmt)
	}
}

func insertAccount(ctx context.Context, tx *sql.Tx, a model.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Password, string(a.Type), toCents(a.Balance),
		a.InterestRate.String(), toCents(a.MaxWithdraw), toCents(a.MaxDeposit),
		toCents(a.MaxTransfer), a.CreditScore, toCents(a.UsedWithdraw),
		toCents(a.UsedDeposit), toCents(a.UsedTransfer))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", a.Name, store.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func insertLoan(ctx context.Context, tx *sql.Tx, l model.Loan) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loans (account_name, interest_rate, original_cents,
		    remaining_cents, owner_id, min_pay_percent, late_fee_cents, paid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.AccountName, l.InterestRate.String(), toCents(l.OriginalAmount),
		toCents(l.AmountRemaining), l.OwnerID, l.MinPayPercent.String(),
		toCents(l.LateFee), boolInt(l.Paid))
	return err
}

// adjustBalance applies the delta only when the resulting balance stays
// non-negative; the usage counter moves in the same row update so a
// staged mutation lands atomically.
func adjustBalance(ctx context.Context, tx *sql.Tx, st store.AdjustBalance) error {
	delta := toCents(st.Delta)
	query := `UPDATE accounts SET balance_cents = balance_cents + ?`
	args := []any{delta}
	if st.UsageField != "" {
		col, err := usageColumn(st.UsageField)
		if err != nil {
			return err
		}
		query += `, ` + col + ` = ` + col + ` + ?`
		args = append(args, toCents(st.UsageDelta))
	}
	query += ` WHERE name = ? AND balance_cents + ? >= 0`
	args = append(args, st.Name, delta)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("adjust balance of %q by %s: %w", st.Name, st.Delta, store.ErrGuardFailed)
	}
	return nil
}

func setCreditScore(ctx context.Context, tx *sql.Tx, st store.SetCreditScore) error {
	limitDelta := toCents(st.LimitDelta)
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET credit_score = ?,
		    max_withdraw_cents = max_withdraw_cents + ?,
		    max_deposit_cents = max_deposit_cents + ?,
		    max_transfer_cents = max_transfer_cents + ?
		 WHERE name = ? AND ? >= 0 AND ? <= 6`,
		st.Score, limitDelta, limitDelta, limitDelta, st.Name, st.Score, st.Score)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set credit score of %q to %d: %w", st.Name, st.Score, store.ErrGuardFailed)
	}
	return nil
}

// usageColumn maps a usage counter to its accounts column.
func usageColumn(field model.UsageField) (string, error) {
	switch field {
	case model.UsageWithdrawn:
		return "used_withdraw_cents", nil
	case model.UsageDeposited:
		return "used_deposit_cents", nil
	case model.UsageTransferred:
		return "used_transfer_cents", nil
	}
	return "", fmt.Errorf("unknown usage field %q", field)
}

var accountFieldColumns = map[string]string{
	"balance":      "balance_cents",
	"interestRate": "interest_rate",
	"maxWithdraw":  "max_withdraw_cents",
	"maxDeposit":   "max_deposit_cents",
	"maxTransfer":  "max_transfer_cents",
	"creditScore":  "credit_score",
}

var loanFieldColumns = map[string]string{
	"interestRate":    "interest_rate",
	"amountRemaining": "remaining_cents",
	"minPayPercent":   "min_pay_percent",
	"lateFee":         "late_fee_cents",
	"paidFlag":        "paid",
}

func updateAccountField(ctx context.Context, tx *sql.Tx, st store.UpdateAccountField) error {
	kind, ok := store.AccountEditable[st.Field]
	if !ok {
		return fmt.Errorf("account field %q is not editable", st.Field)
	}
	value, err := coerceField(kind, st.Value)
	if err != nil {
		return fmt.Errorf("account field %q: %w", st.Field, err)
	}
	return expectOneRow(tx.ExecContext(ctx,
		`UPDATE accounts SET `+accountFieldColumns[st.Field]+` = ? WHERE name = ?`,
		value, st.Name))
}

func updateLoanField(ctx context.Context, tx *sql.Tx, st store.UpdateLoanField) error {
	kind, ok := store.LoanEditable[st.Field]
	if !ok {
		return fmt.Errorf("loan field %q is not editable", st.Field)
	}
	value, err := coerceField(kind, st.Value)
	if err != nil {
		return fmt.Errorf("loan field %q: %w", st.Field, err)
	}
	return expectOneRow(tx.ExecContext(ctx,
		`UPDATE loans SET `+loanFieldColumns[st.Field]+` = ? WHERE id = ?`,
		value, st.ID))
}

// coerceField converts the editor's string value into the column's
// storage representation.
func coerceField(kind store.FieldKind, value string) (any, error) {
	switch kind {
	case store.FieldMoney:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", value, err)
		}
		return toCents(d), nil
	case store.FieldRate:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("parse rate %q: %w", value, err)
		}
		return d.String(), nil
	case store.FieldScore:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("parse score %q: %w", value, err)
		}
		if n < 0 || n > 6 {
			return nil, fmt.Errorf("score %d out of range [0,6]: %w", n, store.ErrGuardFailed)
		}
		return n, nil
	case store.FieldFlag:
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return nil, fmt.Errorf("parse flag %q: %w", value, err)
		}
		return boolInt(b), nil
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no matching row: %w", store.ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
