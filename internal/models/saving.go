package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Saving transaction types
const (
	SavingTypeDeposit  = "deposit"
	SavingTypeWithdraw = "withdraw"
)

// SavingGoal accumulates a running amount toward a target. Amount is derived:
// it always equals the signed sum over the goal's saving transactions.
type SavingGoal struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	Name         string          `json:"name" db:"name"`
	TargetAmount decimal.Decimal `json:"target_amount" db:"target_amount"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	SavingDate   time.Time       `json:"saving_date" db:"saving_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// SavingTransaction is one entry in a goal's ledger. TransactionID links the
// mirrored account transaction when the movement touched an account.
type SavingTransaction struct {
	ID              string          `json:"id" db:"id"`
	GoalID          string          `json:"goal_id" db:"goal_id"`
	AccountID       *string         `json:"account_id" db:"account_id"`
	TransactionID   *string         `json:"transaction_id" db:"transaction_id"`
	Type            string          `json:"type" db:"type"` // deposit or withdraw
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Notes           string          `json:"notes" db:"notes"`
	TransactionDate time.Time       `json:"transaction_date" db:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
