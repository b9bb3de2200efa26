package wallet

import (
	"context"

	"github.com/google/uuid"
)

// StoreTx exposes row operations inside one atomic unit of work. Every
// mutation the engine performs goes through a StoreTx so that it commits or
// rolls back as a whole.
type StoreTx interface {
	// FindWallet loads a wallet row. When lock is true the row is locked
	// exclusively until the unit commits or rolls back, serializing
	// concurrent mutators of the same wallet.
	FindWallet(ctx context.Context, id uuid.UUID, lock bool) (Wallet, error)
	FindWalletByEmail(ctx context.Context, email string) (Wallet, error)
	InsertWallet(ctx context.Context, w Wallet) error
	// UpdateBalance writes a wallet's balance and refreshes its update
	// timestamp. The caller must hold the row lock.
	UpdateBalance(ctx context.Context, w Wallet) error
	// InsertTransaction appends an immutable transaction record.
	InsertTransaction(ctx context.Context, t Transaction) error
}

// Store is the persistent relational store behind the ledger engine.
type Store interface {
	// InTx runs fn inside a single atomic unit. If fn returns an error the
	// unit rolls back and nothing persists; otherwise it commits. Store
	// failures caused by deadlocks or lock timeouts surface as
	// ErrTransientStore.
	InTx(ctx context.Context, fn func(StoreTx) error) error

	// Reads outside any unit of work.
	FindWallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	FindWalletByEmail(ctx context.Context, email string) (Wallet, error)
	ListTransactions(ctx context.Context, q ListQuery) (TransactionPage, error)
}
