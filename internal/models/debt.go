package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt tracks money owed to or by the user. RemainingAmount stays within
// [0, Amount]; IsPaid always mirrors RemainingAmount <= 0.
type Debt struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	Type            string          `json:"type" db:"type"` // payable or receivable
	PersonName      string          `json:"person_name" db:"person_name"`
	Description     string          `json:"description" db:"description"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	DueDate         *time.Time      `json:"due_date" db:"due_date"`
	IsPaid          bool            `json:"is_paid" db:"is_paid"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type DebtPayment struct {
	ID          string          `json:"id" db:"id"`
	DebtID      string          `json:"debt_id" db:"debt_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate time.Time       `json:"payment_date" db:"payment_date"`
	Notes       string          `json:"notes" db:"notes"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
