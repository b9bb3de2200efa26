package wallet

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a concurrency-safe in-memory Store useful for unit tests.
// A single mutex serializes units of work, which gives the same observable
// semantics as row locking under a serial schedule; staged copies provide
// rollback. It also records the order in which rows were locked so tests can
// assert the engine's canonical lock ordering.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]Wallet
	txns    []Transaction

	lockLog []uuid.UUID
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[uuid.UUID]Wallet)}
}

// InTx runs fn against a staged view of the store. Staged writes are applied
// only when fn succeeds.
func (s *MemoryStore) InTx(_ context.Context, fn func(StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &memoryTx{store: s, wallets: make(map[uuid.UUID]Wallet, len(s.wallets))}
	for id, w := range s.wallets {
		staged.wallets[id] = w
	}

	if err := fn(staged); err != nil {
		return err
	}

	s.wallets = staged.wallets
	s.txns = append(s.txns, staged.txns...)
	return nil
}

// FindWallet loads a wallet outside any unit of work.
func (s *MemoryStore) FindWallet(_ context.Context, id uuid.UUID) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

// FindWalletByEmail loads a wallet by email outside any unit of work.
func (s *MemoryStore) FindWalletByEmail(_ context.Context, email string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return walletByEmail(s.wallets, email)
}

// ListTransactions pages through a wallet's transactions, newest first.
func (s *MemoryStore) ListTransactions(_ context.Context, q ListQuery) (TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		if t.WalletID != q.WalletID {
			continue
		}
		if q.Kind != "" && t.Kind != q.Kind {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := TransactionPage{Items: []Transaction{}, Total: int64(len(matched)), Page: q.Page, Limit: q.Limit}
	if q.Limit > 0 {
		page.TotalPages = int((page.Total + int64(q.Limit) - 1) / int64(q.Limit))
	}

	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = append(page.Items, matched[start:end]...)
	return page, nil
}

// LockOrder returns every exclusive lock acquisition observed so far, in
// order. Test helper.
func (s *MemoryStore) LockOrder() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, len(s.lockLog))
	copy(out, s.lockLog)
	return out
}

// TransactionCount reports how many transaction records exist. Test helper.
func (s *MemoryStore) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txns)
}

// Wallets returns a snapshot of all wallets. Test helper.
func (s *MemoryStore) Wallets() []Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	return out
}

// Transactions returns a snapshot of all transaction records. Test helper.
func (s *MemoryStore) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

type memoryTx struct {
	store   *MemoryStore
	wallets map[uuid.UUID]Wallet
	txns    []Transaction
}

func (t *memoryTx) FindWallet(_ context.Context, id uuid.UUID, lock bool) (Wallet, error) {
	if lock {
		t.store.lockLog = append(t.store.lockLog, id)
	}
	w, ok := t.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (t *memoryTx) FindWalletByEmail(_ context.Context, email string) (Wallet, error) {
	return walletByEmail(t.wallets, email)
}

func (t *memoryTx) InsertWallet(_ context.Context, w Wallet) error {
	if _, exists := t.wallets[w.ID]; exists {
		return ErrEmailTaken
	}
	if _, err := walletByEmail(t.wallets, w.Email); err == nil {
		return ErrEmailTaken
	}
	t.wallets[w.ID] = w
	return nil
}

func (t *memoryTx) UpdateBalance(_ context.Context, w Wallet) error {
	existing, ok := t.wallets[w.ID]
	if !ok {
		return ErrWalletNotFound
	}
	existing.Balance = w.Balance
	existing.UpdatedAt = w.UpdatedAt
	t.wallets[w.ID] = existing
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, txn Transaction) error {
	t.txns = append(t.txns, txn)
	return nil
}

func walletByEmail(wallets map[uuid.UUID]Wallet, email string) (Wallet, error) {
	for _, w := range wallets {
		if w.Email == email {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}
