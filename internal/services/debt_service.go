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

// DebtService tracks payables and receivables. remaining_amount stays within
// [0, amount] under every operation, and is_paid is always recomputed from
// remaining_amount, never set independently of it.
type DebtService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewDebtService(db *sql.DB) *DebtService {
	return &DebtService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type CreateDebtInput struct {
	UserID      string `validate:"required"`
	Type        string `validate:"required,oneof=payable receivable"`
	PersonName  string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Amount      decimal.Decimal
	DueDate     *time.Time
}

type UpdateDebtInput struct {
	Type        string `validate:"required,oneof=payable receivable"`
	PersonName  string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Amount      decimal.Decimal
	DueDate     *time.Time
}

type AddPaymentInput struct {
	UserID      string `validate:"required"`
	DebtID      string `validate:"required"`
	Amount      decimal.Decimal
	PaymentDate time.Time
	Notes       string `validate:"max=500"`
}

func (ds *DebtService) CreateDebt(input CreateDebtInput) (*models.Debt, error) {
	if err := ds.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	debt := &models.Debt{
		ID:              uuid.New().String(),
		UserID:          input.UserID,
		Type:            input.Type,
		PersonName:      input.PersonName,
		Description:     input.Description,
		Amount:          input.Amount,
		RemainingAmount: input.Amount,
		DueDate:         input.DueDate,
		IsPaid:          false,
		CreatedAt:       time.Now(),
	}

	_, err := ds.db.Exec(`
		INSERT INTO debts (id, user_id, type, person_name, description, amount, remaining_amount, due_date, is_paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		debt.ID, debt.UserID, debt.Type, debt.PersonName, debt.Description,
		debt.Amount, debt.RemainingAmount, debt.DueDate, debt.IsPaid, debt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create debt: %w", err)
	}

	log.Printf("[DEBT] Created %s (%s %s) for user %s", debt.ID, debt.Type, debt.Amount, debt.UserID)
	return debt, nil
}

// UpdateDebt re-derives the remaining amount when the principal changes:
// what has been paid so far stays paid, and remaining clamps to zero when
// the new principal falls below it.
func (ds *DebtService) UpdateDebt(userID, debtID string, input UpdateDebtInput) error {
	if err := ds.validator.ValidateStruct(&input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	tx, err := ds.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldAmount, oldRemaining decimal.Decimal
	err = tx.QueryRow(`
		SELECT amount, remaining_amount FROM debts
		WHERE id = $1 AND user_id = $2`, debtID, userID).
		Scan(&oldAmount, &oldRemaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrDebtNotFound
		}
		return fmt.Errorf("failed to fetch debt: %w", err)
	}

	paidSoFar := oldAmount.Sub(oldRemaining)
	newRemaining := input.Amount.Sub(paidSoFar)
	if newRemaining.IsNegative() {
		newRemaining = decimal.Zero
	}
	isPaid := newRemaining.LessThanOrEqual(decimal.Zero)

	_, err = tx.Exec(`
		UPDATE debts
		SET type = $1, person_name = $2, description = $3, amount = $4, remaining_amount = $5, due_date = $6, is_paid = $7
		WHERE id = $8 AND user_id = $9`,
		input.Type, input.PersonName, input.Description, input.Amount,
		newRemaining, input.DueDate, isPaid, debtID, userID)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}

	return tx.Commit()
}

// AddPayment reduces the remaining amount, floored at zero.
func (ds *DebtService) AddPayment(input AddPaymentInput) (*models.DebtPayment, error) {
	if err := ds.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	tx, err := ds.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var remaining decimal.Decimal
	err = tx.QueryRow(`
		SELECT remaining_amount FROM debts
		WHERE id = $1 AND user_id = $2`, input.DebtID, input.UserID).
		Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDebtNotFound
		}
		return nil, fmt.Errorf("failed to fetch debt: %w", err)
	}

	payment := &models.DebtPayment{
		ID:          uuid.New().String(),
		DebtID:      input.DebtID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Notes:       input.Notes,
		CreatedAt:   time.Now(),
	}
	_, err = tx.Exec(`
		INSERT INTO debt_payments (id, debt_id, amount, payment_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		payment.ID, payment.DebtID, payment.Amount,
		payment.PaymentDate, payment.Notes, payment.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert debt payment: %w", err)
	}

	newRemaining := remaining.Sub(input.Amount)
	if newRemaining.IsNegative() {
		newRemaining = decimal.Zero
	}
	isPaid := newRemaining.LessThanOrEqual(decimal.Zero)

	_, err = tx.Exec(`
		UPDATE debts SET remaining_amount = $1, is_paid = $2
		WHERE id = $3 AND user_id = $4`,
		newRemaining, isPaid, input.DebtID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to update debt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[DEBT] Payment %s of %s on debt %s", payment.ID, input.Amount, input.DebtID)
	return payment, nil
}

// DeletePayment restores the remaining amount by the payment's amount,
// capped at the principal, and recomputes is_paid from the result.
func (ds *DebtService) DeletePayment(userID, paymentID string) error {
	tx, err := ds.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var debtID string
	var paymentAmount, debtAmount, remaining decimal.Decimal
	err = tx.QueryRow(`
		SELECT p.debt_id, p.amount, d.amount, d.remaining_amount
		FROM debt_payments p
		JOIN debts d ON d.id = p.debt_id
		WHERE p.id = $1 AND d.user_id = $2`, paymentID, userID).
		Scan(&debtID, &paymentAmount, &debtAmount, &remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("failed to fetch debt payment: %w", err)
	}

	newRemaining := remaining.Add(paymentAmount)
	if newRemaining.GreaterThan(debtAmount) {
		newRemaining = debtAmount
	}
	isPaid := newRemaining.LessThanOrEqual(decimal.Zero)

	_, err = tx.Exec(`
		DELETE FROM debt_payments
		WHERE id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("failed to delete debt payment: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE debts SET remaining_amount = $1, is_paid = $2
		WHERE id = $3 AND user_id = $4`,
		newRemaining, isPaid, debtID, userID)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[DEBT] Payment %s deleted from debt %s", paymentID, debtID)
	return nil
}

// TogglePaid flips the paid state. Marking paid zeroes the remaining amount;
// marking unpaid restores the full principal. Recorded payments are kept but
// no longer reflected in the running total.
func (ds *DebtService) TogglePaid(userID, debtID string) error {
	tx, err := ds.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var amount decimal.Decimal
	var isPaid bool
	err = tx.QueryRow(`
		SELECT amount, is_paid FROM debts
		WHERE id = $1 AND user_id = $2`, debtID, userID).
		Scan(&amount, &isPaid)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrDebtNotFound
		}
		return fmt.Errorf("failed to fetch debt: %w", err)
	}

	newRemaining := decimal.Zero
	if isPaid {
		newRemaining = amount
	}

	_, err = tx.Exec(`
		UPDATE debts SET remaining_amount = $1, is_paid = $2
		WHERE id = $3 AND user_id = $4`,
		newRemaining, !isPaid, debtID, userID)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}

	return tx.Commit()
}

// DeleteDebt removes the debt and its payment history in one unit. Debts are
// informational: no account balance is touched.
func (ds *DebtService) DeleteDebt(userID, debtID string) error {
	tx, err := ds.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM debts WHERE id = $1 AND user_id = $2)`,
		debtID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to fetch debt: %w", err)
	}
	if !exists {
		return ErrDebtNotFound
	}

	_, err = tx.Exec(`
		DELETE FROM debt_payments
		WHERE debt_id = $1`, debtID)
	if err != nil {
		return fmt.Errorf("failed to delete debt payments: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM debts
		WHERE id = $1 AND user_id = $2`, debtID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[DEBT] Deleted %s for user %s", debtID, userID)
	return nil
}

func (ds *DebtService) GetDebt(userID, debtID string) (*models.Debt, error) {
	debt := &models.Debt{}
	var dueDate sql.NullTime
	err := ds.db.QueryRow(`
		SELECT id, user_id, type, person_name, description, amount, remaining_amount, due_date, is_paid, created_at
		FROM debts
		WHERE id = $1 AND user_id = $2`, debtID, userID).
		Scan(&debt.ID, &debt.UserID, &debt.Type, &debt.PersonName, &debt.Description,
			&debt.Amount, &debt.RemainingAmount, &dueDate, &debt.IsPaid, &debt.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDebtNotFound
		}
		return nil, fmt.Errorf("failed to fetch debt: %w", err)
	}
	if dueDate.Valid {
		debt.DueDate = &dueDate.Time
	}
	return debt, nil
}

func (ds *DebtService) ListDebts(userID string) ([]models.Debt, error) {
	rows, err := ds.db.Query(`
		SELECT id, user_id, type, person_name, description, amount, remaining_amount, due_date, is_paid, created_at
		FROM debts
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	debts := []models.Debt{}
	for rows.Next() {
		var d models.Debt
		var dueDate sql.NullTime
		err := rows.Scan(&d.ID, &d.UserID, &d.Type, &d.PersonName, &d.Description,
			&d.Amount, &d.RemainingAmount, &dueDate, &d.IsPaid, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		if dueDate.Valid {
			d.DueDate = &dueDate.Time
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func (ds *DebtService) ListPayments(userID, debtID string) ([]models.DebtPayment, error) {
	if _, err := ds.GetDebt(userID, debtID); err != nil {
		return nil, err
	}

	rows, err := ds.db.Query(`
		SELECT id, debt_id, amount, payment_date, notes, created_at
		FROM debt_payments
		WHERE debt_id = $1
		ORDER BY payment_date DESC, created_at DESC`, debtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debt payments: %w", err)
	}
	defer rows.Close()

	payments := []models.DebtPayment{}
	for rows.Next() {
		var p models.DebtPayment
		err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaymentDate, &p.Notes, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
