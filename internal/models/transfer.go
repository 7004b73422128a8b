package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transfer struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	FromAccountID string          `json:"from_account_id" db:"from_account_id"`
	ToAccountID   string          `json:"to_account_id" db:"to_account_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Date          time.Time       `json:"date" db:"date"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
