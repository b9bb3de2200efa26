package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements are idempotent so the service can apply them on every
// start. The balance CHECK backs the engine-level non-negativity invariant.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        id         UUID PRIMARY KEY,
        fullname   VARCHAR(150) NOT NULL,
        email      VARCHAR(150) NOT NULL UNIQUE,
        balance    NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id         UUID PRIMARY KEY,
        wallet_id  UUID NOT NULL REFERENCES wallets (id) ON DELETE CASCADE,
        kind       TEXT NOT NULL CHECK (kind IN ('deposit', 'withdraw', 'transfer')),
        amount     NUMERIC(15,2) NOT NULL CHECK (amount > 0),
        status     TEXT NOT NULL DEFAULT 'completed' CHECK (status IN ('pending', 'completed', 'failed')),
        metadata   JSONB,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_created
        ON transactions (wallet_id, created_at DESC)`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
