// Package ledger implements the wallet ledger engine: every public operation
// runs balance mutations inside one atomic unit of work against the store,
// takes row locks in a canonical order, and keeps the cache consistent by
// invalidating before returning.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaultpay/vaultpay/internal/cache"
	"github.com/vaultpay/vaultpay/internal/notification"
	"github.com/vaultpay/vaultpay/internal/wallet"
)

// DefaultListTTL is the staleness backstop for cached transaction pages.
// Balance keys carry no TTL: explicit invalidation is their correctness
// mechanism.
const DefaultListTTL = time.Hour

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Options tunes engine behavior.
type Options struct {
	ListTTL time.Duration
}

// Engine orchestrates the store, the transaction log and the cache behind
// the public wallet operations. It holds no in-process state: correctness
// under concurrent engine instances rests entirely on store row locks and
// the cache's repopulation mutex.
type Engine struct {
	store    wallet.Store
	cache    *cache.Cache
	notifier notification.Notifier
	logger   *slog.Logger
	listTTL  time.Duration
}

// NewEngine builds a ledger engine. notifier may be nil.
func NewEngine(store wallet.Store, c *cache.Cache, notifier notification.Notifier, logger *slog.Logger, opts Options) *Engine {
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	return &Engine{store: store, cache: c, notifier: notifier, logger: logger, listTTL: opts.ListTTL}
}

// CreateWalletInput captures the data required to open a wallet.
type CreateWalletInput struct {
	FullName       string
	Email          string
	InitialBalance decimal.Decimal
}

// TransferResult reports both post-transfer balances.
type TransferResult struct {
	SenderBalance   decimal.Decimal `json:"sender_balance"`
	ReceiverBalance decimal.Decimal `json:"receiver_balance"`
}

// balancePayload is the serialized form of a balance cache entry.
type balancePayload struct {
	Balance decimal.Decimal `json:"balance"`
}

// CreateWallet opens a wallet. A positive initial balance is recorded as a
// deposit transaction in the same atomic unit as the wallet insert. The
// email pre-check is advisory; the store's unique constraint is the second
// line of defense and also surfaces as ErrEmailTaken.
func (e *Engine) CreateWallet(ctx context.Context, in CreateWalletInput) (wallet.Wallet, error) {
	if in.InitialBalance.IsNegative() {
		return wallet.Wallet{}, wallet.ErrInvalidAmount
	}

	if _, err := e.store.FindWalletByEmail(ctx, in.Email); err == nil {
		return wallet.Wallet{}, wallet.ErrEmailTaken
	} else if !errors.Is(err, wallet.ErrWalletNotFound) {
		return wallet.Wallet{}, fmt.Errorf("check email: %w", err)
	}

	now := time.Now().UTC()
	w := wallet.Wallet{
		ID:        uuid.New(),
		FullName:  in.FullName,
		Email:     in.Email,
		Balance:   in.InitialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.store.InTx(ctx, func(tx wallet.StoreTx) error {
		if err := tx.InsertWallet(ctx, w); err != nil {
			return err
		}
		if w.Balance.IsPositive() {
			return tx.InsertTransaction(ctx, wallet.Transaction{
				ID:        uuid.New(),
				WalletID:  w.ID,
				Kind:      wallet.KindDeposit,
				Amount:    w.Balance,
				Status:    wallet.StatusCompleted,
				CreatedAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return wallet.Wallet{}, err
	}

	// Initial population is the one place a mutation writes the cache
	// directly; afterwards mutations only invalidate.
	if err := e.cache.Set(ctx, balanceKey(w.ID), balancePayload{Balance: w.Balance}, 0); err != nil {
		e.logger.Warn("populate balance cache", slog.String("wallet_id", w.ID.String()), slog.Any("error", err))
	}

	return w, nil
}

// GetBalance answers from the cache when possible, otherwise reads through
// to the store with stampede protection.
func (e *Engine) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	payload, err := cache.GetOrFill(ctx, e.cache, balanceKey(id), 0, func(ctx context.Context) (balancePayload, error) {
		w, err := e.store.FindWallet(ctx, id)
		if err != nil {
			return balancePayload{}, err
		}
		return balancePayload{Balance: w.Balance}, nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return payload.Balance, nil
}

// Deposit adds amount to the wallet and appends a deposit record, all in one
// atomic unit, then invalidates the wallet's cache entries.
func (e *Engine) Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, wallet.ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := e.store.InTx(ctx, func(tx wallet.StoreTx) error {
		w, err := tx.FindWallet(ctx, id, true)
		if err != nil {
			return err
		}
		w.Balance = w.Balance.Add(amount)
		w.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateBalance(ctx, w); err != nil {
			return err
		}
		balance = w.Balance
		return tx.InsertTransaction(ctx, wallet.Transaction{
			ID:        uuid.New(),
			WalletID:  id,
			Kind:      wallet.KindDeposit,
			Amount:    amount,
			Status:    wallet.StatusCompleted,
			CreatedAt: w.UpdatedAt,
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	e.invalidate(ctx, id)
	return balance, nil
}

// Withdraw removes amount from the wallet. The insufficient-funds check runs
// strictly after the row lock is held, so a concurrent mutator cannot slip
// between check and write.
func (e *Engine) Withdraw(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, wallet.ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := e.store.InTx(ctx, func(tx wallet.StoreTx) error {
		w, err := tx.FindWallet(ctx, id, true)
		if err != nil {
			return err
		}
		if w.Balance.LessThan(amount) {
			return wallet.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(amount)
		w.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateBalance(ctx, w); err != nil {
			return err
		}
		balance = w.Balance
		return tx.InsertTransaction(ctx, wallet.Transaction{
			ID:        uuid.New(),
			WalletID:  id,
			Kind:      wallet.KindWithdraw,
			Amount:    amount,
			Status:    wallet.StatusCompleted,
			CreatedAt: w.UpdatedAt,
		})
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	e.invalidate(ctx, id)
	return balance, nil
}

// Transfer debits the sender and credits the receiver inside one atomic
// unit, writing one metadata-linked transaction row per leg. Both rows are
// locked before either balance is read, in ascending identifier order
// regardless of which side sends: two opposed concurrent transfers therefore
// acquire locks in the same global order and cannot deadlock.
func (e *Engine) Transfer(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal) (TransferResult, error) {
	if senderID == receiverID {
		return TransferResult{}, wallet.ErrSelfTransfer
	}
	if !amount.IsPositive() {
		return TransferResult{}, wallet.ErrInvalidAmount
	}

	var res TransferResult
	err := e.store.InTx(ctx, func(tx wallet.StoreTx) error {
		first, second := lockOrder(senderID, receiverID)

		locked := make(map[uuid.UUID]wallet.Wallet, 2)
		for _, id := range []uuid.UUID{first, second} {
			w, err := tx.FindWallet(ctx, id, true)
			if err != nil {
				return err
			}
			locked[id] = w
		}

		sender, receiver := locked[senderID], locked[receiverID]
		if sender.Balance.LessThan(amount) {
			return wallet.ErrInsufficientFunds
		}

		now := time.Now().UTC()
		sender.Balance = sender.Balance.Sub(amount)
		sender.UpdatedAt = now
		receiver.Balance = receiver.Balance.Add(amount)
		receiver.UpdatedAt = now

		if err := tx.UpdateBalance(ctx, sender); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, receiver); err != nil {
			return err
		}

		debit := wallet.Transaction{
			ID:        uuid.New(),
			WalletID:  senderID,
			Kind:      wallet.KindTransfer,
			Amount:    amount,
			Status:    wallet.StatusCompleted,
			Meta:      &wallet.TransferMeta{Direction: wallet.DirectionDebit, Counterparty: receiverID},
			CreatedAt: now,
		}
		credit := wallet.Transaction{
			ID:        uuid.New(),
			WalletID:  receiverID,
			Kind:      wallet.KindTransfer,
			Amount:    amount,
			Status:    wallet.StatusCompleted,
			Meta:      &wallet.TransferMeta{Direction: wallet.DirectionCredit, Counterparty: senderID},
			CreatedAt: now,
		}
		if err := tx.InsertTransaction(ctx, debit); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, credit); err != nil {
			return err
		}

		res = TransferResult{SenderBalance: sender.Balance, ReceiverBalance: receiver.Balance}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	e.invalidate(ctx, senderID, receiverID)

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: receiverID.String(),
			Body:        fmt.Sprintf("You received %s from wallet %s", amount.StringFixed(2), senderID),
		})
	}

	return res, nil
}

// ListTransactions returns one cached page of a wallet's history, keyed by
// the full parameter tuple. Pages expire after the configured TTL and are
// also invalidated eagerly by any mutation touching the wallet.
func (e *Engine) ListTransactions(ctx context.Context, q wallet.ListQuery) (wallet.TransactionPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}

	return cache.GetOrFill(ctx, e.cache, listKey(q), e.listTTL, func(ctx context.Context) (wallet.TransactionPage, error) {
		if _, err := e.store.FindWallet(ctx, q.WalletID); err != nil {
			return wallet.TransactionPage{}, err
		}
		return e.store.ListTransactions(ctx, q)
	})
}

// invalidate drops the balance entry and every cached history page for each
// wallet. Failures are logged and swallowed: the mutation already committed
// and the TTL backstop covers any missed page.
func (e *Engine) invalidate(ctx context.Context, ids ...uuid.UUID) {
	for _, id := range ids {
		if err := e.cache.Delete(ctx, balanceKey(id)); err != nil {
			e.logger.Warn("invalidate balance cache", slog.String("wallet_id", id.String()), slog.Any("error", err))
		}
		if err := e.cache.DeleteByPrefix(ctx, listPrefix(id)); err != nil {
			e.logger.Warn("invalidate history cache", slog.String("wallet_id", id.String()), slog.Any("error", err))
		}
	}
}

// lockOrder returns the pair in canonical (ascending) lock order,
// independent of sender/receiver roles.
func lockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return a, b
	}
	return b, a
}

func balanceKey(id uuid.UUID) string {
	return "wallet:" + id.String()
}

func listPrefix(id uuid.UUID) string {
	return "wallet:" + id.String() + ":txns:"
}

func listKey(q wallet.ListQuery) string {
	kind := "all"
	if q.Kind != "" {
		kind = string(q.Kind)
	}
	return fmt.Sprintf("%spage:%d:limit:%d:kind:%s", listPrefix(q.WalletID), q.Page, q.Limit, kind)
}
