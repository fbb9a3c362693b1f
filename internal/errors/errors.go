// Package errors defines the domain error taxonomy shared by the ledger
// services. Callers classify failures with errors.Is against these
// sentinels; packages wrap them with fmt.Errorf("%w") for context.
package errors

import "errors"

var (
	// ErrValidation marks malformed input. Rejected with no mutation.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks a credential mismatch. The message never reveals
	// which of name or password failed.
	ErrAuth = errors.New("incorrect name or password")

	// ErrInsufficientFunds marks a debit that would overdraw an account.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound marks a missing account, loan, or recipient.
	ErrNotFound = errors.New("not found")

	// ErrBelowMinimumPayment marks a loan payment under the minimum that
	// would not fully settle the loan.
	ErrBelowMinimumPayment = errors.New("payment below minimum")

	// ErrNameTaken marks an account name collision at creation.
	ErrNameTaken = errors.New("account name taken")

	// ErrInvalidType marks an unknown account type at creation.
	ErrInvalidType = errors.New("invalid account type")

	// ErrNoTickets marks a lottery draw with an empty ticket list.
	ErrNoTickets = errors.New("no lottery tickets")

	// ErrPermissionDenied marks a non-operator invoking an operator
	// command.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBatchFailed marks a staged batch whose application failed; the
	// whole batch was rolled back.
	ErrBatchFailed = errors.New("batch failed")

	// ErrStoreUnavailable marks a row store failure. The operation is
	// aborted and must be retried by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
