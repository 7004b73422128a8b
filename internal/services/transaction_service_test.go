package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionService_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	t.Run("expense debits the account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-food", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "user-1", accountID, "cat-food", nil, nil,
				"Makan siang", decimal.NewFromInt(30000), sqlmock.AnyArg(), "", false, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		transaction, err := service.CreateTransaction(CreateTransactionInput{
			UserID:     "user-1",
			AccountID:  &accountID,
			CategoryID: "cat-food",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(30000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(30000), transaction.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("income credits the account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-salary", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("income"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(5000000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := service.CreateTransaction(CreateTransactionInput{
			UserID:     "user-1",
			AccountID:  &accountID,
			CategoryID: "cat-salary",
			Name:       "Gaji",
			Amount:     decimal.NewFromInt(5000000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid category rejects before any ledger mutation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-missing", "user-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.CreateTransaction(CreateTransactionInput{
			UserID:     "user-1",
			AccountID:  &accountID,
			CategoryID: "cat-missing",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(30000),
			Date:       time.Now(),
		})
		assert.ErrorIs(t, err, ErrInvalidCategory)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		_, err := service.CreateTransaction(CreateTransactionInput{
			UserID:     "user-1",
			AccountID:  &accountID,
			CategoryID: "cat-food",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(-1),
		})
		assert.ErrorIs(t, err, ErrNegativeAmount)
	})

	t.Run("goal-linked create feeds the goal ledger", func(t *testing.T) {
		goalID := "goal-1"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-saving", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-100000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT name FROM saving_goals").
			WithArgs(goalID, "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("New Car"))
		mock.ExpectExec("INSERT INTO saving_transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs(goalID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := service.CreateTransaction(CreateTransactionInput{
			UserID:     "user-1",
			AccountID:  &accountID,
			CategoryID: "cat-saving",
			GoalID:     &goalID,
			Name:       "Nabung",
			Amount:     decimal.NewFromInt(100000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_UpdateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	// Balance 100,000; expense changed from 30,000 to 50,000: revert +30,000,
	// then apply -50,000 for a net of -20,000.
	t.Run("amount edit reverts old effect before applying new", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-food", nil, "30000", time.Now(), false, "expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WithArgs(accountID, "cat-food", nil, "Makan siang", decimal.NewFromInt(50000),
				sqlmock.AnyArg(), "", "tx-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-food", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-50000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-food",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(50000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// Same amount and account, category kind expense -> income: the two
	// deltas are +30,000 and +30,000, a net swing of twice the amount.
	t.Run("kind change swings the balance by twice the amount", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-food", nil, "30000", time.Now(), false, "expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-refund", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("income"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-refund",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(30000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// The revert must land on the account the transaction had before the
	// edit, even when the edit moves it to another account.
	t.Run("account change reverts on the old account", func(t *testing.T) {
		newAccountID := "acc-2"

		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-food", nil, "30000", time.Now(), false, "expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-food", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-30000), newAccountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &newAccountID,
			CategoryID: "cat-food",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(30000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found short-circuits before any revert", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-missing", "user-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := service.UpdateTransaction("user-1", "tx-missing", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-food",
			Name:       "Makan siang",
			Amount:     decimal.NewFromInt(30000),
		})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_DeleteTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	t.Run("delete reverts the effect and removes the row", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-food", nil, "50000", time.Now(), false, "expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(50000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("DELETE FROM saving_transactions").
			WithArgs("tx-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("DELETE FROM transactions").
			WithArgs("tx-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.DeleteTransaction("user-1", "tx-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_BulkDeleteTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	t.Run("whole batch shares one unit of work", func(t *testing.T) {
		mock.ExpectBegin()
		for i, id := range []string{"tx-1", "tx-2"} {
			amount := []string{"30000", "20000"}[i]
			revert := []int64{30000, 20000}[i]

			mock.ExpectQuery("FROM transactions t JOIN categories c").
				WithArgs(id, "user-1").
				WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
					AddRow(id, accountID, "cat-food", nil, amount, time.Now(), false, "expense"))
			mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
				WithArgs(decimal.NewFromInt(revert), accountID, "user-1").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("DELETE FROM saving_transactions").
				WithArgs(id).
				WillReturnError(sql.ErrNoRows)
			mock.ExpectExec("DELETE FROM transactions").
				WithArgs(id, "user-1").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		err := service.BulkDeleteTransactions("user-1", []string{"tx-1", "tx-2"})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mid-batch failure rolls the whole batch back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-food", nil, "30000", time.Now(), false, "expense"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(30000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("DELETE FROM saving_transactions").
			WithArgs("tx-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("DELETE FROM transactions").
			WithArgs("tx-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-missing", "user-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := service.BulkDeleteTransactions("user-1", []string{"tx-1", "tx-missing"})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		err := service.BulkDeleteTransactions("user-1", nil)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

// Generic edits of goal-linked transactions must keep the goal ledger in
// step: one ledger entry follows the transaction's goal link, and the goal
// amount is re-derived from the ledger inside the same unit of work.
func TestTransactionService_UpdateTransaction_GoalLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	t.Run("linking a goal attaches one ledger entry", func(t *testing.T) {
		goalID := "goal-1"

		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-saving", nil, "100000", time.Now(), false, "saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(100000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WithArgs(accountID, "cat-saving", goalID, "Nabung", decimal.NewFromInt(100000),
				sqlmock.AnyArg(), "", "tx-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-saving", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-100000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT name FROM saving_goals").
			WithArgs(goalID, "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("New Car"))
		mock.ExpectExec("INSERT INTO saving_transactions").
			WithArgs(sqlmock.AnyArg(), goalID, accountID, "tx-1", "deposit",
				decimal.NewFromInt(100000), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs(goalID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-saving",
			GoalID:     &goalID,
			Name:       "Nabung",
			Amount:     decimal.NewFromInt(100000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("amount edit adjusts the one ledger entry in place", func(t *testing.T) {
		goalID := "goal-1"

		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-saving", goalID, "100000", time.Now(), false, "saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(100000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-saving", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(decimal.NewFromInt(-150000), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE saving_transactions").
			WithArgs(goalID, accountID, decimal.NewFromInt(150000), "", sqlmock.AnyArg(), "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs(goalID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-saving",
			GoalID:     &goalID,
			Name:       "Nabung",
			Amount:     decimal.NewFromInt(150000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("goal switch refreshes both goals", func(t *testing.T) {
		newGoalID := "goal-2"

		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-saving", "goal-1", "100000", time.Now(), false, "saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-saving", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT name FROM saving_goals").
			WithArgs(newGoalID, "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Liburan"))
		mock.ExpectExec("UPDATE saving_transactions").
			WithArgs(newGoalID, accountID, decimal.NewFromInt(100000), "", sqlmock.AnyArg(), "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs("goal-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs(newGoalID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-saving",
			GoalID:     &newGoalID,
			Name:       "Nabung",
			Amount:     decimal.NewFromInt(100000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlinking detaches the ledger entry", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-1", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-1", accountID, "cat-saving", "goal-1", "100000", time.Now(), false, "saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE transactions SET account_id").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT kind FROM categories").
			WithArgs("cat-saving", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("saving"))
		mock.ExpectExec("UPDATE accounts SET balance = balance \\+ \\$1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("DELETE FROM saving_transactions").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows([]string{"goal_id"}).AddRow("goal-1"))
		mock.ExpectExec("UPDATE saving_goals SET amount").
			WithArgs("goal-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.UpdateTransaction("user-1", "tx-1", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-saving",
			Name:       "Nabung",
			Amount:     decimal.NewFromInt(100000),
			Date:       time.Now(),
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_TransferMirrorGuard(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, nil)
	accountID := "acc-1"

	t.Run("updating a transfer mirror rejected before any revert", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-mirror", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-mirror", accountID, "cat-out", nil, "150000", time.Now(), true, "expense"))
		mock.ExpectRollback()

		err := service.UpdateTransaction("user-1", "tx-mirror", UpdateTransactionInput{
			AccountID:  &accountID,
			CategoryID: "cat-out",
			Name:       "Transfer ke BCA",
			Amount:     decimal.NewFromInt(150000),
			Date:       time.Now(),
		})
		assert.ErrorIs(t, err, ErrTransferManaged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deleting a transfer mirror rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("FROM transactions t JOIN categories c").
			WithArgs("tx-mirror", "user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "category_id", "goal_id", "amount", "date", "is_transfer", "kind"}).
				AddRow("tx-mirror", accountID, "cat-out", nil, "150000", time.Now(), true, "expense"))
		mock.ExpectRollback()

		err := service.DeleteTransaction("user-1", "tx-mirror")
		assert.ErrorIs(t, err, ErrTransferManaged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
