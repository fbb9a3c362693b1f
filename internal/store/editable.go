package store

// FieldKind describes how an editor value is coerced before it reaches
// the row store.
type FieldKind int

const (
	// FieldMoney is a decimal amount rounded to two places.
	FieldMoney FieldKind = iota
	// FieldRate is an exact decimal fraction.
	FieldRate
	// FieldScore is an integer credit score within bounds.
	FieldScore
	// FieldFlag is a boolean.
	FieldFlag
)

// AccountEditable allow-lists the account fields reachable through the
// operator field editor. Name and password changes go through the normal
// account lifecycle commands, never the editor.
var AccountEditable = map[string]FieldKind{
	"balance":      FieldMoney,
	"interestRate": FieldRate,
	"maxWithdraw":  FieldMoney,
	"maxDeposit":   FieldMoney,
	"maxTransfer":  FieldMoney,
	"creditScore":  FieldScore,
}

// LoanEditable allow-lists the loan fields reachable through the
// operator field editor.
var LoanEditable = map[string]FieldKind{
	"interestRate":    FieldRate,
	"amountRemaining": FieldMoney,
	"minPayPercent":   FieldRate,
	"lateFee":         FieldMoney,
	"paidFlag":        FieldFlag,
}
