package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/duitku/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService is the account ledger: it owns every balance mutation.
// Balances only ever change through in-place signed deltas, so the row
// update itself serializes concurrent writers on the same account.
type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type CreateAccountInput struct {
	UserID    string `validate:"required"`
	Name      string `validate:"required,max=100"`
	Kind      string `validate:"required,oneof=cash bank ewallet"`
	Balance   decimal.Decimal
	IsDefault bool
}

type UpdateAccountInput struct {
	Name      string `validate:"required,max=100"`
	Kind      string `validate:"required,oneof=cash bank ewallet"`
	IsDefault bool
}

// ApplyDeltaTx adds a signed amount to the account balance inside an open
// unit of work. Overdraft is permitted: accounts may go negative.
func (as *AccountService) ApplyDeltaTx(tx *sql.Tx, userID, accountID string, delta decimal.Decimal) error {
	result, err := tx.Exec(`
		UPDATE accounts SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`, delta, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// RevertDeltaTx undoes a previously applied delta. Apply-then-revert nets to
// zero, so revert-then-apply-new equals applying only the new effect.
func (as *AccountService) RevertDeltaTx(tx *sql.Tx, userID, accountID string, delta decimal.Decimal) error {
	return as.ApplyDeltaTx(tx, userID, accountID, delta.Neg())
}

func (as *AccountService) CreateAccount(input CreateAccountInput) (*models.Account, error) {
	if err := as.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if input.Balance.IsNegative() {
		return nil, ErrNegativeAmount
	}

	tx, err := as.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if input.IsDefault {
		if err := as.clearDefaultTx(tx, input.UserID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	account := &models.Account{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Name:      input.Name,
		Kind:      input.Kind,
		Balance:   input.Balance,
		IsDefault: input.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (id, user_id, name, kind, balance, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, account.Name, account.Kind,
		account.Balance, account.IsDefault, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[LEDGER] Account %s created for user %s", account.ID, account.UserID)
	return account, nil
}

func (as *AccountService) GetAccount(userID, accountID string) (*models.Account, error) {
	account := &models.Account{}
	err := as.db.QueryRow(`
		SELECT id, user_id, name, kind, balance, is_default, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID).
		Scan(&account.ID, &account.UserID, &account.Name, &account.Kind,
			&account.Balance, &account.IsDefault, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return account, nil
}

func (as *AccountService) ListAccounts(userID string) ([]models.Account, error) {
	rows, err := as.db.Query(`
		SELECT id, user_id, name, kind, balance, is_default, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Kind,
			&a.Balance, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpdateAccount changes name, kind and default flag. The balance is not
// editable here; it belongs to the effect engines.
func (as *AccountService) UpdateAccount(userID, accountID string, input UpdateAccountInput) error {
	if err := as.validator.ValidateStruct(&input); err != nil {
		return err
	}

	tx, err := as.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if input.IsDefault {
		if err := as.clearDefaultTx(tx, userID); err != nil {
			return err
		}
	}

	result, err := tx.Exec(`
		UPDATE accounts SET name = $1, kind = $2, is_default = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5`,
		input.Name, input.Kind, input.IsDefault, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit()
}

// DeleteAccount removes an account that has no referencing transactions or
// transfers and is not the default account.
func (as *AccountService) DeleteAccount(userID, accountID string) error {
	tx, err := as.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isDefault bool
	err = tx.QueryRow(`
		SELECT is_default FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID).Scan(&isDefault)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to fetch account: %w", err)
	}
	if isDefault {
		return ErrDefaultAccountDelete
	}

	var referenced bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM transactions WHERE account_id = $1)
		OR EXISTS(SELECT 1 FROM transfers WHERE from_account_id = $1 OR to_account_id = $1)`,
		accountID).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to check account references: %w", err)
	}
	if referenced {
		return ErrAccountInUse
	}

	_, err = tx.Exec(`
		DELETE FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[LEDGER] Account %s deleted for user %s", accountID, userID)
	return nil
}

// ownedTx verifies the account exists and belongs to the user, returning its
// name for use in mirrored transaction labels.
func (as *AccountService) ownedTx(tx *sql.Tx, userID, accountID string) (string, error) {
	var name string
	err := tx.QueryRow(`
		SELECT name FROM accounts
		WHERE id = $1 AND user_id = $2`, accountID, userID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrAccountNotFound
		}
		return "", fmt.Errorf("failed to fetch account: %w", err)
	}
	return name, nil
}

// At most one default account per user: clear the previous one before a new
// default is written in the same unit.
func (as *AccountService) clearDefaultTx(tx *sql.Tx, userID string) error {
	_, err := tx.Exec(`
		UPDATE accounts SET is_default = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_default`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear default account: %w", err)
	}
	return nil
}
