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

// TransferService moves money between two accounts of the same user. A
// transfer is one unit of work with five effects: the transfer row, the
// debit, the credit, and a mirrored expense/income transaction pair flagged
// is_transfer so analytics exclude them.
type TransferService struct {
	db         *sql.DB
	accounts   *AccountService
	categories *CategoryService
	summary    *SummaryService
	validator  *ValidationHelper
}

func NewTransferService(db *sql.DB, rdb *redis.Client) *TransferService {
	return &TransferService{
		db:         db,
		accounts:   NewAccountService(db),
		categories: NewCategoryService(db),
		summary:    NewSummaryService(db, rdb),
		validator:  NewValidationHelper(),
	}
}

type CreateTransferInput struct {
	UserID        string `validate:"required"`
	FromAccountID string `validate:"required"`
	ToAccountID   string `validate:"required"`
	Amount        decimal.Decimal
	Date          time.Time
	Notes         string `validate:"max=500"`
}

func (tr *TransferService) CreateTransfer(input CreateTransferInput) (*models.Transfer, error) {
	if err := tr.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if input.FromAccountID == input.ToAccountID {
		return nil, ErrSelfTransfer
	}
	if !input.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	tx, err := tr.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fromName, err := tr.accounts.ownedTx(tx, input.UserID, input.FromAccountID)
	if err != nil {
		return nil, err
	}
	toName, err := tr.accounts.ownedTx(tx, input.UserID, input.ToAccountID)
	if err != nil {
		return nil, err
	}

	// The two transfer categories are provisioned lazily, once per user.
	outCategoryID, err := tr.categories.GetOrCreateTx(tx, input.UserID,
		models.TransferOutCategoryName, models.CategoryKindExpense)
	if err != nil {
		return nil, err
	}
	inCategoryID, err := tr.categories.GetOrCreateTx(tx, input.UserID,
		models.TransferInCategoryName, models.CategoryKindIncome)
	if err != nil {
		return nil, err
	}

	transfer := &models.Transfer{
		ID:            uuid.New().String(),
		UserID:        input.UserID,
		FromAccountID: input.FromAccountID,
		ToAccountID:   input.ToAccountID,
		Amount:        input.Amount,
		Date:          input.Date,
		Notes:         input.Notes,
		CreatedAt:     time.Now(),
	}
	_, err = tx.Exec(`
		INSERT INTO transfers (id, user_id, from_account_id, to_account_id, amount, date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		transfer.ID, transfer.UserID, transfer.FromAccountID, transfer.ToAccountID,
		transfer.Amount, transfer.Date, transfer.Notes, transfer.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}

	if err := tr.accounts.ApplyDeltaTx(tx, input.UserID, input.FromAccountID, input.Amount.Neg()); err != nil {
		return nil, err
	}
	if err := tr.accounts.ApplyDeltaTx(tx, input.UserID, input.ToAccountID, input.Amount); err != nil {
		return nil, err
	}

	outgoing := &models.Transaction{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		AccountID:  &input.FromAccountID,
		CategoryID: outCategoryID,
		TransferID: &transfer.ID,
		Name:       fmt.Sprintf("Transfer ke %s", toName),
		Amount:     input.Amount,
		Date:       input.Date,
		Notes:      input.Notes,
		IsTransfer: true,
		CreatedAt:  time.Now(),
	}
	if err := insertTransactionTx(tx, outgoing); err != nil {
		return nil, err
	}

	incoming := &models.Transaction{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		AccountID:  &input.ToAccountID,
		CategoryID: inCategoryID,
		TransferID: &transfer.ID,
		Name:       fmt.Sprintf("Transfer dari %s", fromName),
		Amount:     input.Amount,
		Date:       input.Date,
		Notes:      input.Notes,
		IsTransfer: true,
		CreatedAt:  time.Now(),
	}
	if err := insertTransactionTx(tx, incoming); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	tr.summary.Invalidate(context.Background(), input.UserID, input.Date)
	log.Printf("[TRANSFER] %s: %s from %s to %s", transfer.ID, input.Amount,
		input.FromAccountID, input.ToAccountID)
	return transfer, nil
}

// DeleteTransfer undoes a transfer: the debit and credit are reverted and
// the mirrored transaction pair is removed with the transfer row.
func (tr *TransferService) DeleteTransfer(userID, transferID string) error {
	tx, err := tr.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fromAccountID, toAccountID string
	var amount decimal.Decimal
	var date time.Time
	err = tx.QueryRow(`
		SELECT from_account_id, to_account_id, amount, date FROM transfers
		WHERE id = $1 AND user_id = $2`, transferID, userID).
		Scan(&fromAccountID, &toAccountID, &amount, &date)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTransferNotFound
		}
		return fmt.Errorf("failed to fetch transfer: %w", err)
	}

	if err := tr.accounts.ApplyDeltaTx(tx, userID, fromAccountID, amount); err != nil {
		return err
	}
	if err := tr.accounts.ApplyDeltaTx(tx, userID, toAccountID, amount.Neg()); err != nil {
		return err
	}

	_, err = tx.Exec(`
		DELETE FROM transactions
		WHERE transfer_id = $1 AND user_id = $2`, transferID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete mirrored transactions: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM transfers
		WHERE id = $1 AND user_id = $2`, transferID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	tr.summary.Invalidate(context.Background(), userID, date)
	log.Printf("[TRANSFER] Deleted %s for user %s", transferID, userID)
	return nil
}

func (tr *TransferService) GetTransfer(userID, transferID string) (*models.Transfer, error) {
	transfer := &models.Transfer{}
	err := tr.db.QueryRow(`
		SELECT id, user_id, from_account_id, to_account_id, amount, date, notes, created_at
		FROM transfers
		WHERE id = $1 AND user_id = $2`, transferID, userID).
		Scan(&transfer.ID, &transfer.UserID, &transfer.FromAccountID, &transfer.ToAccountID,
			&transfer.Amount, &transfer.Date, &transfer.Notes, &transfer.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("failed to fetch transfer: %w", err)
	}
	return transfer, nil
}

func (tr *TransferService) ListTransfers(userID string) ([]models.Transfer, error) {
	rows, err := tr.db.Query(`
		SELECT id, user_id, from_account_id, to_account_id, amount, date, notes, created_at
		FROM transfers
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		var t models.Transfer
		err := rows.Scan(&t.ID, &t.UserID, &t.FromAccountID, &t.ToAccountID,
			&t.Amount, &t.Date, &t.Notes, &t.CreatedAt)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
