package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the store translates into the domain taxonomy.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// PostgresStore persists wallets and transactions in PostgreSQL, relying on
// row-level locks and transaction isolation for correctness under concurrent
// engine instances.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by a pgx connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier abstracts pool and transaction so row helpers work in both scopes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn inside a single database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classifyPgError(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{q: tx}); err != nil {
		return classifyPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPgError(err)
	}
	return nil
}

// FindWallet loads a wallet without locking it.
func (s *PostgresStore) FindWallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	return findWallet(ctx, s.db, id, false)
}

// FindWalletByEmail loads a wallet by its unique email.
func (s *PostgresStore) FindWalletByEmail(ctx context.Context, email string) (Wallet, error) {
	return findWalletByEmail(ctx, s.db, email)
}

// ListTransactions returns one page of a wallet's transactions, newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, q ListQuery) (TransactionPage, error) {
	const countQuery = `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1 AND ($2 = '' OR kind = $2)`
	const pageQuery = `
        SELECT id, wallet_id, kind, amount, status, metadata, created_at
        FROM transactions
        WHERE wallet_id = $1 AND ($2 = '' OR kind = $2)
        ORDER BY created_at DESC
        OFFSET $3 LIMIT $4`

	page := TransactionPage{Items: []Transaction{}, Page: q.Page, Limit: q.Limit}

	if err := s.db.QueryRow(ctx, countQuery, q.WalletID, string(q.Kind)).Scan(&page.Total); err != nil {
		return TransactionPage{}, classifyPgError(err)
	}

	rows, err := s.db.Query(ctx, pageQuery, q.WalletID, string(q.Kind), q.Offset(), q.Limit)
	if err != nil {
		return TransactionPage{}, classifyPgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    Transaction
			meta []byte
		)
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Kind, &t.Amount, &t.Status, &meta, &t.CreatedAt); err != nil {
			return TransactionPage{}, classifyPgError(err)
		}
		if len(meta) > 0 {
			t.Meta = &TransferMeta{}
			if err := json.Unmarshal(meta, t.Meta); err != nil {
				return TransactionPage{}, fmt.Errorf("decode transaction metadata: %w", err)
			}
		}
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return TransactionPage{}, classifyPgError(err)
	}

	if q.Limit > 0 {
		page.TotalPages = int((page.Total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return page, nil
}

type postgresTx struct {
	q querier
}

func (t *postgresTx) FindWallet(ctx context.Context, id uuid.UUID, lock bool) (Wallet, error) {
	return findWallet(ctx, t.q, id, lock)
}

func (t *postgresTx) FindWalletByEmail(ctx context.Context, email string) (Wallet, error) {
	return findWalletByEmail(ctx, t.q, email)
}

func (t *postgresTx) InsertWallet(ctx context.Context, w Wallet) error {
	_, err := t.q.Exec(ctx, `INSERT INTO wallets (id, fullname, email, balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.FullName, w.Email, w.Balance, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	return classifyPgError(err)
}

func (t *postgresTx) UpdateBalance(ctx context.Context, w Wallet) error {
	tag, err := t.q.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`,
		w.ID, w.Balance, w.UpdatedAt.UTC())
	if err != nil {
		return classifyPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	var meta []byte
	if txn.Meta != nil {
		encoded, err := json.Marshal(txn.Meta)
		if err != nil {
			return fmt.Errorf("encode transaction metadata: %w", err)
		}
		meta = encoded
	}
	_, err := t.q.Exec(ctx, `INSERT INTO transactions (id, wallet_id, kind, amount, status, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.WalletID, txn.Kind, txn.Amount, txn.Status, meta, txn.CreatedAt.UTC())
	return classifyPgError(err)
}

func findWallet(ctx context.Context, q querier, id uuid.UUID, lock bool) (Wallet, error) {
	query := `SELECT id, fullname, email, balance, created_at, updated_at FROM wallets WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanWallet(q.QueryRow(ctx, query, id))
}

func findWalletByEmail(ctx context.Context, q querier, email string) (Wallet, error) {
	const query = `SELECT id, fullname, email, balance, created_at, updated_at FROM wallets WHERE email = $1`
	return scanWallet(q.QueryRow(ctx, query, email))
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.FullName, &w.Email, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, classifyPgError(err)
	}
	return w, nil
}

// classifyPgError maps Postgres failures onto the domain error taxonomy.
// Deadlocks, lock timeouts and serialization conflicts become
// ErrTransientStore so callers know the unit committed nothing and a retry
// is safe; unique violations on the email index become ErrEmailTaken.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrTransientStore, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrEmailTaken, pgErr.ConstraintName)
		}
	}
	return err
}
