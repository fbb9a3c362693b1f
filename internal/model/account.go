package model

import "github.com/shopspring/decimal"

// AccountType classifies accounts by tier.
type AccountType string

const (
	AccountTypeChecking   AccountType = "Checking"
	AccountTypeSavings    AccountType = "Savings"
	AccountTypeBusiness   AccountType = "Business"
	AccountTypeGovernment AccountType = "Government"

	// AccountTypeOfficial marks the reserved system accounts (operator
	// float and lottery pool). It cannot be chosen at account creation.
	AccountTypeOfficial AccountType = "Official"
)

// CustomerTypes lists the account types a customer may open.
var CustomerTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeBusiness,
	AccountTypeGovernment,
}

// ValidCustomerType reports whether t may be used for a new customer account.
func ValidCustomerType(t AccountType) bool {
	for _, ct := range CustomerTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// UsageField names one of the rolling daily usage counters.
type UsageField string

const (
	UsageWithdrawn   UsageField = "usedWithdraw"
	UsageDeposited   UsageField = "usedDeposit"
	UsageTransferred UsageField = "usedTransfer"
)

// Account represents a row in the accounts relation.
type Account struct {
	Name         string
	Password     string
	Type         AccountType
	Balance      decimal.Decimal
	InterestRate decimal.Decimal
	MaxWithdraw  decimal.Decimal
	MaxDeposit   decimal.Decimal
	MaxTransfer  decimal.Decimal
	CreditScore  int
	UsedWithdraw decimal.Decimal
	UsedDeposit  decimal.Decimal
	UsedTransfer decimal.Decimal
}

// Limit returns the daily limit paired with the given usage field.
func (a Account) Limit(field UsageField) decimal.Decimal {
	switch field {
	case UsageWithdrawn:
		return a.MaxWithdraw
	case UsageDeposited:
		return a.MaxDeposit
	case UsageTransferred:
		return a.MaxTransfer
	}
	return decimal.Zero
}

// Usage returns the current value of the given usage counter.
func (a Account) Usage(field UsageField) decimal.Decimal {
	switch field {
	case UsageWithdrawn:
		return a.UsedWithdraw
	case UsageDeposited:
		return a.UsedDeposit
	case UsageTransferred:
		return a.UsedTransfer
	}
	return decimal.Zero
}
