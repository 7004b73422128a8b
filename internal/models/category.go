package models

import "time"

// Category kinds decide the sign of a transaction's balance effect:
// income credits an account, expense and saving debit it.
const (
	CategoryKindExpense = "expense"
	CategoryKindIncome  = "income"
	CategoryKindSaving  = "saving"
)

// Names of the auto-provisioned transfer categories.
const (
	TransferOutCategoryName = "Transfer Keluar"
	TransferInCategoryName  = "Transfer Masuk"
)

type Category struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Kind      string    `json:"kind" db:"kind"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
