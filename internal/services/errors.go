package services

import "errors"

// Business errors returned by the engines. All of them short-circuit before
// any ledger mutation, or abort the surrounding unit of work so nothing
// partial persists.
var (
	ErrInvalidCategory     = errors.New("Invalid Category")
	ErrInsufficientSavings = errors.New("Insufficient balance")

	ErrAccountNotFound     = errors.New("account not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrGoalNotFound        = errors.New("saving goal not found")
	ErrDebtNotFound        = errors.New("debt not found")
	ErrPaymentNotFound     = errors.New("debt payment not found")

	ErrSelfTransfer         = errors.New("cannot transfer to the same account")
	ErrNegativeAmount       = errors.New("amount must not be negative")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrCategoryInUse        = errors.New("category is referenced by transactions")
	ErrAccountInUse         = errors.New("account is referenced by transactions")
	ErrDefaultAccountDelete = errors.New("default account cannot be deleted")
	ErrTransferManaged      = errors.New("transaction belongs to a transfer")
)
