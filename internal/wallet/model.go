package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind identifies the balance-affecting event a transaction records.
type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"
	KindWithdraw TransactionKind = "withdraw"
	KindTransfer TransactionKind = "transfer"
)

// Valid reports whether k is one of the known transaction kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransfer:
		return true
	}
	return false
}

// TransactionStatus tracks settlement state. Core paths only ever write
// StatusCompleted; pending and failed are reserved for asynchronous
// settlement.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Direction labels the two legs of a transfer.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Wallet is an account holding a non-negative monetary balance.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	FullName  string          `json:"fullname"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransferMeta links a transfer leg to its counterparty wallet.
type TransferMeta struct {
	Direction    Direction `json:"direction"`
	Counterparty uuid.UUID `json:"counterparty"`
}

// Transaction is an immutable record of one balance-affecting event. It is
// written in the same atomic unit as the balance mutation it describes and
// never updated afterwards.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	WalletID  uuid.UUID         `json:"wallet_id"`
	Kind      TransactionKind   `json:"kind"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Meta      *TransferMeta     `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ListQuery selects a page of a wallet's transactions, newest first.
type ListQuery struct {
	WalletID uuid.UUID
	Page     int
	Limit    int
	// Kind filters by transaction kind when non-empty.
	Kind TransactionKind
}

// Offset returns the row offset implied by the page and limit.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// TransactionPage is one page of a wallet's transaction history.
type TransactionPage struct {
	Items      []Transaction `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}
