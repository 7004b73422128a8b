package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Kind      string          `json:"kind" db:"kind"` // cash, bank or ewallet
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	IsDefault bool            `json:"is_default" db:"is_default"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
