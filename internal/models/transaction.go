package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single balance-affecting event. Its effect sign is not
// stored; it is derived from the category kind at the moment the effect is
// applied or reverted.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	AccountID  *string         `json:"account_id" db:"account_id"`
	CategoryID string          `json:"category_id" db:"category_id"`
	GoalID     *string         `json:"goal_id" db:"goal_id"`
	TransferID *string         `json:"transfer_id" db:"transfer_id"`
	Name       string          `json:"name" db:"name"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Date       time.Time       `json:"date" db:"date"`
	Notes      string          `json:"notes" db:"notes"`
	IsTransfer bool            `json:"is_transfer" db:"is_transfer"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
