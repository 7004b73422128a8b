package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Schema is the full DDL for the tracker. Every statement is idempotent so
// Migrate can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('cash', 'bank', 'ewallet')),
    balance     NUMERIC(18, 2) NOT NULL DEFAULT 0,
    is_default  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_default_per_user
    ON accounts (user_id) WHERE is_default;

CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('expense', 'income', 'saving')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, name, kind)
);

CREATE TABLE IF NOT EXISTS saving_goals (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    name           TEXT NOT NULL,
    target_amount  NUMERIC(18, 2) NOT NULL DEFAULT 0,
    amount         NUMERIC(18, 2) NOT NULL DEFAULT 0,
    saving_date    TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transfers (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    from_account_id  TEXT NOT NULL REFERENCES accounts (id),
    to_account_id    TEXT NOT NULL REFERENCES accounts (id),
    amount           NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    date             TIMESTAMPTZ NOT NULL,
    notes            TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (from_account_id <> to_account_id)
);

CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    account_id   TEXT REFERENCES accounts (id),
    category_id  TEXT NOT NULL REFERENCES categories (id),
    goal_id      TEXT REFERENCES saving_goals (id) ON DELETE SET NULL,
    transfer_id  TEXT REFERENCES transfers (id),
    name         TEXT NOT NULL,
    amount       NUMERIC(18, 2) NOT NULL CHECK (amount >= 0),
    date         TIMESTAMPTZ NOT NULL,
    notes        TEXT NOT NULL DEFAULT '',
    is_transfer  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS transactions_user_date ON transactions (user_id, date);
CREATE INDEX IF NOT EXISTS transactions_goal ON transactions (goal_id);
CREATE INDEX IF NOT EXISTS transactions_transfer ON transactions (transfer_id);

CREATE TABLE IF NOT EXISTS saving_transactions (
    id                TEXT PRIMARY KEY,
    goal_id           TEXT NOT NULL REFERENCES saving_goals (id),
    account_id        TEXT REFERENCES accounts (id),
    transaction_id    TEXT REFERENCES transactions (id) ON DELETE SET NULL,
    type              TEXT NOT NULL CHECK (type IN ('deposit', 'withdraw')),
    amount            NUMERIC(18, 2) NOT NULL CHECK (amount >= 0),
    notes             TEXT NOT NULL DEFAULT '',
    transaction_date  TIMESTAMPTZ NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS saving_transactions_goal ON saving_transactions (goal_id);

CREATE TABLE IF NOT EXISTS debts (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    type              TEXT NOT NULL CHECK (type IN ('payable', 'receivable')),
    person_name       TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    amount            NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    remaining_amount  NUMERIC(18, 2) NOT NULL,
    due_date          TIMESTAMPTZ,
    is_paid           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS debt_payments (
    id            TEXT PRIMARY KEY,
    debt_id       TEXT NOT NULL REFERENCES debts (id),
    amount        NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
    payment_date  TIMESTAMPTZ NOT NULL,
    notes         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS debt_payments_debt ON debt_payments (debt_id);
`

// Migrate applies the schema to the given database.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	log.Println("[MIGRATE] Schema applied")
	return nil
}
