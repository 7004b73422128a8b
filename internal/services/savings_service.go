package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/duitku/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsService tracks saving goals. A goal's amount is never mutated
// imperatively: every goal-affecting movement (deposit, withdrawal, or a
// generic transaction linked via goal_id) writes a saving_transactions row,
// and the goal amount is recomputed as the signed sum over that ledger inside
// the same unit of work. Deposits/withdrawals and generic transaction edits
// therefore share one accounting path and cannot double-count.
type SavingsService struct {
	db         *sql.DB
	accounts   *AccountService
	categories *CategoryService
	summary    *SummaryService
	validator  *ValidationHelper
}

func NewSavingsService(db *sql.DB, rdb *redis.Client) *SavingsService {
	return &SavingsService{
		db:         db,
		accounts:   NewAccountService(db),
		categories: NewCategoryService(db),
		summary:    NewSummaryService(db, rdb),
		validator:  NewValidationHelper(),
	}
}

type CreateGoalInput struct {
	UserID        string `validate:"required"`
	Name          string `validate:"required,max=100"`
	TargetAmount  decimal.Decimal
	InitialAmount decimal.Decimal
	SavingDate    time.Time
}

type UpdateGoalInput struct {
	Name         string `validate:"required,max=100"`
	TargetAmount decimal.Decimal
	SavingDate   time.Time
}

type DepositInput struct {
	UserID     string `validate:"required"`
	GoalID     string `validate:"required"`
	AccountID  string `validate:"required"`
	CategoryID string `validate:"required"`
	Amount     decimal.Decimal
	Notes      string `validate:"max=500"`
	Date       time.Time
}

type WithdrawInput struct {
	UserID     string `validate:"required"`
	GoalID     string `validate:"required"`
	AccountID  string `validate:"required"`
	CategoryID string `validate:"required"`
	Amount     decimal.Decimal
	Notes      string `validate:"max=500"`
	Date       time.Time
}

// CreateGoal creates a goal. A non-zero initial amount is recorded as a
// deposit with no account behind it: the money is assumed pre-existing, so
// no balance effect is applied anywhere.
func (sv *SavingsService) CreateGoal(input CreateGoalInput) (*models.SavingGoal, error) {
	if err := sv.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if input.InitialAmount.IsNegative() || input.TargetAmount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	tx, err := sv.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	goal := &models.SavingGoal{
		ID:           uuid.New().String(),
		UserID:       input.UserID,
		Name:         input.Name,
		TargetAmount: input.TargetAmount,
		Amount:       decimal.Zero,
		SavingDate:   input.SavingDate,
		CreatedAt:    time.Now(),
	}

	_, err = tx.Exec(`
		INSERT INTO saving_goals (id, user_id, name, target_amount, amount, saving_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		goal.ID, goal.UserID, goal.Name, goal.TargetAmount, goal.Amount,
		goal.SavingDate, goal.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create saving goal: %w", err)
	}

	if input.InitialAmount.IsPositive() {
		_, err = tx.Exec(`
			INSERT INTO saving_transactions (id, goal_id, account_id, transaction_id, type, amount, notes, transaction_date, created_at)
			VALUES ($1, $2, NULL, NULL, $3, $4, $5, $6, $7)`,
			uuid.New().String(), goal.ID, models.SavingTypeDeposit,
			input.InitialAmount, "Initial Balance", input.SavingDate, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
		if err := sv.refreshGoalAmountTx(tx, goal.ID); err != nil {
			return nil, err
		}
		goal.Amount = input.InitialAmount
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[SAVINGS] Goal %s created for user %s", goal.ID, goal.UserID)
	return goal, nil
}

// Deposit moves money from an account into a goal: the account is debited,
// a mirrored expense transaction is recorded, and the goal ledger grows by
// the same amount. All four effects share one unit of work.
func (sv *SavingsService) Deposit(input DepositInput) (*models.SavingTransaction, error) {
	if err := sv.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	tx, err := sv.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	goalName, err := sv.goalOwnedTx(tx, input.UserID, input.GoalID)
	if err != nil {
		return nil, err
	}

	// Only saving categories are selectable for deposits.
	kind, err := sv.categories.KindOfTx(tx, input.UserID, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if kind != models.CategoryKindSaving {
		return nil, ErrInvalidCategory
	}

	if _, err := sv.accounts.ownedTx(tx, input.UserID, input.AccountID); err != nil {
		return nil, err
	}
	if err := sv.accounts.ApplyDeltaTx(tx, input.UserID, input.AccountID, input.Amount.Neg()); err != nil {
		return nil, err
	}

	mirrored := &models.Transaction{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		AccountID:  &input.AccountID,
		CategoryID: input.CategoryID,
		GoalID:     &input.GoalID,
		Name:       fmt.Sprintf("Tabungan: %s", goalName),
		Amount:     input.Amount,
		Date:       input.Date,
		Notes:      input.Notes,
		CreatedAt:  time.Now(),
	}
	if err := insertTransactionTx(tx, mirrored); err != nil {
		return nil, err
	}

	saving := &models.SavingTransaction{
		ID:              uuid.New().String(),
		GoalID:          input.GoalID,
		AccountID:       &input.AccountID,
		TransactionID:   &mirrored.ID,
		Type:            models.SavingTypeDeposit,
		Amount:          input.Amount,
		Notes:           input.Notes,
		TransactionDate: input.Date,
		CreatedAt:       time.Now(),
	}
	if err := insertSavingTransactionTx(tx, saving); err != nil {
		return nil, err
	}

	if err := sv.refreshGoalAmountTx(tx, input.GoalID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	sv.summary.Invalidate(context.Background(), input.UserID, input.Date)
	log.Printf("[SAVINGS] Deposit %s to goal %s from account %s", input.Amount, input.GoalID, input.AccountID)
	return saving, nil
}

// Withdraw moves money from a goal back into an account. Rejected when the
// goal has accumulated less than the requested amount.
func (sv *SavingsService) Withdraw(input WithdrawInput) (*models.SavingTransaction, error) {
	if err := sv.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	tx, err := sv.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var goalName string
	var goalAmount decimal.Decimal
	err = tx.QueryRow(`
		SELECT name, amount FROM saving_goals
		WHERE id = $1 AND user_id = $2`, input.GoalID, input.UserID).
		Scan(&goalName, &goalAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to fetch saving goal: %w", err)
	}
	if goalAmount.LessThan(input.Amount) {
		return nil, ErrInsufficientSavings
	}

	// Withdrawals mirror as income on the receiving account.
	kind, err := sv.categories.KindOfTx(tx, input.UserID, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if kind != models.CategoryKindIncome {
		return nil, ErrInvalidCategory
	}

	if _, err := sv.accounts.ownedTx(tx, input.UserID, input.AccountID); err != nil {
		return nil, err
	}
	if err := sv.accounts.ApplyDeltaTx(tx, input.UserID, input.AccountID, input.Amount); err != nil {
		return nil, err
	}

	mirrored := &models.Transaction{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		AccountID:  &input.AccountID,
		CategoryID: input.CategoryID,
		GoalID:     &input.GoalID,
		Name:       fmt.Sprintf("Penarikan: %s", goalName),
		Amount:     input.Amount,
		Date:       input.Date,
		Notes:      input.Notes,
		CreatedAt:  time.Now(),
	}
	if err := insertTransactionTx(tx, mirrored); err != nil {
		return nil, err
	}

	saving := &models.SavingTransaction{
		ID:              uuid.New().String(),
		GoalID:          input.GoalID,
		AccountID:       &input.AccountID,
		TransactionID:   &mirrored.ID,
		Type:            models.SavingTypeWithdraw,
		Amount:          input.Amount,
		Notes:           input.Notes,
		TransactionDate: input.Date,
		CreatedAt:       time.Now(),
	}
	if err := insertSavingTransactionTx(tx, saving); err != nil {
		return nil, err
	}

	if err := sv.refreshGoalAmountTx(tx, input.GoalID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	sv.summary.Invalidate(context.Background(), input.UserID, input.Date)
	log.Printf("[SAVINGS] Withdraw %s from goal %s to account %s", input.Amount, input.GoalID, input.AccountID)
	return saving, nil
}

func (sv *SavingsService) GetGoal(userID, goalID string) (*models.SavingGoal, error) {
	goal := &models.SavingGoal{}
	err := sv.db.QueryRow(`
		SELECT id, user_id, name, target_amount, amount, saving_date, created_at
		FROM saving_goals
		WHERE id = $1 AND user_id = $2`, goalID, userID).
		Scan(&goal.ID, &goal.UserID, &goal.Name, &goal.TargetAmount,
			&goal.Amount, &goal.SavingDate, &goal.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to fetch saving goal: %w", err)
	}
	return goal, nil
}

func (sv *SavingsService) ListGoals(userID string) ([]models.SavingGoal, error) {
	rows, err := sv.db.Query(`
		SELECT id, user_id, name, target_amount, amount, saving_date, created_at
		FROM saving_goals
		WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saving goals: %w", err)
	}
	defer rows.Close()

	goals := []models.SavingGoal{}
	for rows.Next() {
		var g models.SavingGoal
		err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount,
			&g.Amount, &g.SavingDate, &g.CreatedAt)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal edits descriptive fields. The accumulated amount is derived and
// not editable.
func (sv *SavingsService) UpdateGoal(userID, goalID string, input UpdateGoalInput) error {
	if err := sv.validator.ValidateStruct(&input); err != nil {
		return err
	}
	if input.TargetAmount.IsNegative() {
		return ErrNegativeAmount
	}

	result, err := sv.db.Exec(`
		UPDATE saving_goals SET name = $1, target_amount = $2, saving_date = $3
		WHERE id = $4 AND user_id = $5`,
		input.Name, input.TargetAmount, input.SavingDate, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to update saving goal: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// DeleteGoal detaches referencing transactions (their account effects and
// history survive), removes the goal ledger, and deletes the goal. Account
// balances are untouched: goal deletion is balance-neutral.
func (sv *SavingsService) DeleteGoal(userID, goalID string) error {
	tx, err := sv.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sv.goalOwnedTx(tx, userID, goalID); err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE transactions SET goal_id = NULL
		WHERE goal_id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to detach transactions: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM saving_transactions
		WHERE goal_id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("failed to delete saving transactions: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM saving_goals
		WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete saving goal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[SAVINGS] Goal %s deleted for user %s", goalID, userID)
	return nil
}

func (sv *SavingsService) ListSavingTransactions(userID, goalID string) ([]models.SavingTransaction, error) {
	if _, err := sv.GetGoal(userID, goalID); err != nil {
		return nil, err
	}

	rows, err := sv.db.Query(`
		SELECT id, goal_id, account_id, transaction_id, type, amount, notes, transaction_date, created_at
		FROM saving_transactions
		WHERE goal_id = $1
		ORDER BY transaction_date DESC, created_at DESC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saving transactions: %w", err)
	}
	defer rows.Close()

	savings := []models.SavingTransaction{}
	for rows.Next() {
		var s models.SavingTransaction
		var accountID, transactionID sql.NullString
		err := rows.Scan(&s.ID, &s.GoalID, &accountID, &transactionID,
			&s.Type, &s.Amount, &s.Notes, &s.TransactionDate, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		if accountID.Valid {
			s.AccountID = &accountID.String
		}
		if transactionID.Valid {
			s.TransactionID = &transactionID.String
		}
		savings = append(savings, s)
	}
	return savings, rows.Err()
}

// Cascade helpers used by the transaction effect engine for generic edits of
// goal-linked transactions. All run inside the caller's unit of work.

func (sv *SavingsService) goalOwnedTx(tx *sql.Tx, userID, goalID string) (string, error) {
	var name string
	err := tx.QueryRow(`
		SELECT name FROM saving_goals
		WHERE id = $1 AND user_id = $2`, goalID, userID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrGoalNotFound
		}
		return "", fmt.Errorf("failed to fetch saving goal: %w", err)
	}
	return name, nil
}

// attachTransactionTx records a generic goal-linked transaction in the goal
// ledger as a deposit and refreshes the goal amount.
func (sv *SavingsService) attachTransactionTx(tx *sql.Tx, goalID string, accountID *string, transactionID string, amount decimal.Decimal, notes string, date time.Time) error {
	saving := &models.SavingTransaction{
		ID:              uuid.New().String(),
		GoalID:          goalID,
		AccountID:       accountID,
		TransactionID:   &transactionID,
		Type:            models.SavingTypeDeposit,
		Amount:          amount,
		Notes:           notes,
		TransactionDate: date,
		CreatedAt:       time.Now(),
	}
	if err := insertSavingTransactionTx(tx, saving); err != nil {
		return err
	}
	return sv.refreshGoalAmountTx(tx, goalID)
}

// detachTransactionTx removes the ledger entry behind a transaction, if any,
// and refreshes the affected goal.
func (sv *SavingsService) detachTransactionTx(tx *sql.Tx, transactionID string) error {
	var goalID string
	err := tx.QueryRow(`
		DELETE FROM saving_transactions
		WHERE transaction_id = $1
		RETURNING goal_id`, transactionID).Scan(&goalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("failed to detach saving transaction: %w", err)
	}
	return sv.refreshGoalAmountTx(tx, goalID)
}

// syncTransactionLinkTx reconciles the goal ledger after a generic update:
// the entry follows the transaction's goal link, amount and account. The
// entry type is preserved, so an edit of a withdrawal mirror keeps moving
// the goal in the withdraw direction.
func (sv *SavingsService) syncTransactionLinkTx(tx *sql.Tx, userID, transactionID string, oldGoalID, newGoalID *string, amount decimal.Decimal, accountID *string, notes string, date time.Time) error {
	switch {
	case oldGoalID == nil && newGoalID == nil:
		return nil

	case oldGoalID == nil:
		if _, err := sv.goalOwnedTx(tx, userID, *newGoalID); err != nil {
			return err
		}
		return sv.attachTransactionTx(tx, *newGoalID, accountID, transactionID, amount, notes, date)

	case newGoalID == nil:
		return sv.detachTransactionTx(tx, transactionID)

	default:
		if *newGoalID != *oldGoalID {
			if _, err := sv.goalOwnedTx(tx, userID, *newGoalID); err != nil {
				return err
			}
		}
		result, err := tx.Exec(`
			UPDATE saving_transactions
			SET goal_id = $1, account_id = $2, amount = $3, notes = $4, transaction_date = $5
			WHERE transaction_id = $6`,
			*newGoalID, accountID, amount, notes, date, transactionID)
		if err != nil {
			return fmt.Errorf("failed to sync saving transaction: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return sv.attachTransactionTx(tx, *newGoalID, accountID, transactionID, amount, notes, date)
		}
		if err := sv.refreshGoalAmountTx(tx, *oldGoalID); err != nil {
			return err
		}
		if *newGoalID != *oldGoalID {
			return sv.refreshGoalAmountTx(tx, *newGoalID)
		}
		return nil
	}
}

// refreshGoalAmountTx re-derives the goal amount from its ledger. Both the
// deposit/withdraw path and the generic cascade end here, which is what
// keeps the two channels from double-counting.
func (sv *SavingsService) refreshGoalAmountTx(tx *sql.Tx, goalID string) error {
	_, err := tx.Exec(`
		UPDATE saving_goals SET amount = (
			SELECT COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END), 0)
			FROM saving_transactions
			WHERE goal_id = $1
		)
		WHERE id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("failed to refresh goal amount: %w", err)
	}
	return nil
}

func insertSavingTransactionTx(tx *sql.Tx, s *models.SavingTransaction) error {
	_, err := tx.Exec(`
		INSERT INTO saving_transactions (id, goal_id, account_id, transaction_id, type, amount, notes, transaction_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.GoalID, s.AccountID, s.TransactionID, s.Type,
		s.Amount, s.Notes, s.TransactionDate, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert saving transaction: %w", err)
	}
	return nil
}
