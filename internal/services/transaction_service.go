package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/duitku/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionService is the transaction effect engine. Every create computes
// a signed effect from the category kind and applies it to the account; every
// update reverts the old effect — under the old account, kind and amount —
// before the new one is applied; every delete reverts and removes. Each
// mutation is one unit of work.
type TransactionService struct {
	db         *sql.DB
	accounts   *AccountService
	categories *CategoryService
	savings    *SavingsService
	summary    *SummaryService
	validator  *ValidationHelper
}

func NewTransactionService(db *sql.DB, rdb *redis.Client) *TransactionService {
	return &TransactionService{
		db:         db,
		accounts:   NewAccountService(db),
		categories: NewCategoryService(db),
		savings:    NewSavingsService(db, rdb),
		summary:    NewSummaryService(db, rdb),
		validator:  NewValidationHelper(),
	}
}

type CreateTransactionInput struct {
	UserID     string `validate:"required"`
	AccountID  *string
	CategoryID string `validate:"required"`
	GoalID     *string
	Name       string `validate:"required,max=200"`
	Amount     decimal.Decimal
	Date       time.Time
	Notes      string `validate:"max=500"`
}

type UpdateTransactionInput struct {
	AccountID  *string
	CategoryID string `validate:"required"`
	GoalID     *string
	Name       string `validate:"required,max=200"`
	Amount     decimal.Decimal
	Date       time.Time
	Notes      string `validate:"max=500"`
}

// effectAmount derives the signed balance effect of a transaction from its
// category kind: income credits, expense and saving debit.
func effectAmount(kind string, amount decimal.Decimal) decimal.Decimal {
	if kind == models.CategoryKindIncome {
		return amount
	}
	return amount.Neg()
}

// CreateTransaction classifies the category, applies the effect and persists
// the row. Invalid account or category rejects before any ledger mutation.
func (ts *TransactionService) CreateTransaction(input CreateTransactionInput) (*models.Transaction, error) {
	if err := ts.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if input.Amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	kind, err := ts.categories.KindOfTx(tx, input.UserID, input.CategoryID)
	if err != nil {
		return nil, err
	}

	if input.AccountID != nil {
		err := ts.accounts.ApplyDeltaTx(tx, input.UserID, *input.AccountID, effectAmount(kind, input.Amount))
		if err != nil {
			return nil, err
		}
	}

	transaction := &models.Transaction{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		AccountID:  input.AccountID,
		CategoryID: input.CategoryID,
		GoalID:     input.GoalID,
		Name:       input.Name,
		Amount:     input.Amount,
		Date:       input.Date,
		Notes:      input.Notes,
		CreatedAt:  time.Now(),
	}
	if err := insertTransactionTx(tx, transaction); err != nil {
		return nil, err
	}

	if input.GoalID != nil {
		if _, err := ts.savings.goalOwnedTx(tx, input.UserID, *input.GoalID); err != nil {
			return nil, err
		}
		err := ts.savings.attachTransactionTx(tx, *input.GoalID, input.AccountID,
			transaction.ID, input.Amount, input.Notes, input.Date)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	ts.summary.Invalidate(context.Background(), input.UserID, input.Date)
	log.Printf("[TRANSACTION] Created %s (%s %s) for user %s", transaction.ID, kind, input.Amount, input.UserID)
	return transaction, nil
}

// UpdateTransaction reverts the prior effect using the pre-update account,
// category kind and amount, persists the new field values, then applies the
// new effect. The goal ledger follows the transaction's goal link.
func (ts *TransactionService) UpdateTransaction(userID, transactionID string, input UpdateTransactionInput) error {
	if err := ts.validator.ValidateStruct(&input); err != nil {
		return err
	}
	if input.Amount.IsNegative() {
		return ErrNegativeAmount
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, oldKind, err := ts.fetchWithKindTx(tx, userID, transactionID)
	if err != nil {
		return err
	}
	// Transfer mirrors stay consistent with their transfer row; they are
	// only mutated through the transfer engine.
	if old.IsTransfer {
		return ErrTransferManaged
	}

	if old.AccountID != nil {
		err := ts.accounts.RevertDeltaTx(tx, userID, *old.AccountID, effectAmount(oldKind, old.Amount))
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		UPDATE transactions
		SET account_id = $1, category_id = $2, goal_id = $3, name = $4, amount = $5, date = $6, notes = $7
		WHERE id = $8 AND user_id = $9`,
		input.AccountID, input.CategoryID, input.GoalID, input.Name,
		input.Amount, input.Date, input.Notes, transactionID, userID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	newKind, err := ts.categories.KindOfTx(tx, userID, input.CategoryID)
	if err != nil {
		return err
	}

	if input.AccountID != nil {
		err := ts.accounts.ApplyDeltaTx(tx, userID, *input.AccountID, effectAmount(newKind, input.Amount))
		if err != nil {
			return err
		}
	}

	err = ts.savings.syncTransactionLinkTx(tx, userID, transactionID,
		old.GoalID, input.GoalID, input.Amount, input.AccountID, input.Notes, input.Date)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	ts.summary.Invalidate(context.Background(), userID, old.Date)
	ts.summary.Invalidate(context.Background(), userID, input.Date)
	log.Printf("[TRANSACTION] Updated %s for user %s", transactionID, userID)
	return nil
}

// DeleteTransaction reverts the effect and removes the row.
func (ts *TransactionService) DeleteTransaction(userID, transactionID string) error {
	tx, err := ts.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	date, err := ts.deleteOneTx(tx, userID, transactionID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	ts.summary.Invalidate(context.Background(), userID, date)
	log.Printf("[TRANSACTION] Deleted %s for user %s", transactionID, userID)
	return nil
}

// BulkDeleteTransactions removes a batch with single-delete semantics per
// item, inside one unit of work: a failure mid-batch rolls the whole batch
// back, so no transaction is ever left half-reverted.
func (ts *TransactionService) BulkDeleteTransactions(userID string, transactionIDs []string) error {
	if len(transactionIDs) == 0 {
		return ErrTransactionNotFound
	}

	tx, err := ts.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dates := []time.Time{}
	for _, id := range transactionIDs {
		date, err := ts.deleteOneTx(tx, userID, id)
		if err != nil {
			return fmt.Errorf("bulk delete aborted at %s: %w", id, err)
		}
		dates = append(dates, date)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	for _, date := range dates {
		ts.summary.Invalidate(context.Background(), userID, date)
	}
	log.Printf("[TRANSACTION] Bulk deleted %d transactions for user %s", len(transactionIDs), userID)
	return nil
}

func (ts *TransactionService) deleteOneTx(tx *sql.Tx, userID, transactionID string) (time.Time, error) {
	old, oldKind, err := ts.fetchWithKindTx(tx, userID, transactionID)
	if err != nil {
		return time.Time{}, err
	}
	if old.IsTransfer {
		return time.Time{}, ErrTransferManaged
	}

	if old.AccountID != nil {
		err := ts.accounts.RevertDeltaTx(tx, userID, *old.AccountID, effectAmount(oldKind, old.Amount))
		if err != nil {
			return time.Time{}, err
		}
	}

	if err := ts.savings.detachTransactionTx(tx, transactionID); err != nil {
		return time.Time{}, err
	}

	_, err = tx.Exec(`
		DELETE FROM transactions
		WHERE id = $1 AND user_id = $2`, transactionID, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to delete transaction: %w", err)
	}

	return old.Date, nil
}

// fetchWithKindTx loads a transaction together with its category kind, the
// snapshot the revert step needs. Not-found short-circuits before any revert.
func (ts *TransactionService) fetchWithKindTx(tx *sql.Tx, userID, transactionID string) (*models.Transaction, string, error) {
	t := &models.Transaction{}
	var kind string
	var accountID, goalID sql.NullString
	err := tx.QueryRow(`
		SELECT t.id, t.account_id, t.category_id, t.goal_id, t.amount, t.date, t.is_transfer, c.kind
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1 AND t.user_id = $2`, transactionID, userID).
		Scan(&t.ID, &accountID, &t.CategoryID, &goalID, &t.Amount, &t.Date, &t.IsTransfer, &kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", ErrTransactionNotFound
		}
		return nil, "", fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if accountID.Valid {
		t.AccountID = &accountID.String
	}
	if goalID.Valid {
		t.GoalID = &goalID.String
	}
	t.UserID = userID
	return t, kind, nil
}

func (ts *TransactionService) GetTransaction(userID, transactionID string) (*models.Transaction, error) {
	t := &models.Transaction{}
	var accountID, goalID, transferID sql.NullString
	err := ts.db.QueryRow(`
		SELECT id, user_id, account_id, category_id, goal_id, transfer_id, name, amount, date, notes, is_transfer, created_at
		FROM transactions
		WHERE id = $1 AND user_id = $2`, transactionID, userID).
		Scan(&t.ID, &t.UserID, &accountID, &t.CategoryID, &goalID, &transferID,
			&t.Name, &t.Amount, &t.Date, &t.Notes, &t.IsTransfer, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if accountID.Valid {
		t.AccountID = &accountID.String
	}
	if goalID.Valid {
		t.GoalID = &goalID.String
	}
	if transferID.Valid {
		t.TransferID = &transferID.String
	}
	return t, nil
}

// ListTransactions returns transactions with optional account and category
// filters, newest first.
func (ts *TransactionService) ListTransactions(userID, accountID, categoryID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var conditions []string
	var args []interface{}
	args = append(args, userID)
	argIndex := 2

	baseQuery := `
		SELECT id, user_id, account_id, category_id, goal_id, transfer_id, name, amount, date, notes, is_transfer, created_at
		FROM transactions
		WHERE user_id = $1`

	if accountID != "" {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", argIndex))
		args = append(args, accountID)
		argIndex++
	}
	if categoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, categoryID)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := ts.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var accID, goalID, transferID sql.NullString
		err := rows.Scan(&t.ID, &t.UserID, &accID, &t.CategoryID, &goalID, &transferID,
			&t.Name, &t.Amount, &t.Date, &t.Notes, &t.IsTransfer, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		if accID.Valid {
			t.AccountID = &accID.String
		}
		if goalID.Valid {
			t.GoalID = &goalID.String
		}
		if transferID.Valid {
			t.TransferID = &transferID.String
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func insertTransactionTx(tx *sql.Tx, t *models.Transaction) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (id, user_id, account_id, category_id, goal_id, transfer_id, name, amount, date, notes, is_transfer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, t.GoalID, t.TransferID,
		t.Name, t.Amount, t.Date, t.Notes, t.IsTransfer, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}
