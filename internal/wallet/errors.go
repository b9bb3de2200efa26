package wallet

import "errors"

var (
	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrEmailTaken indicates another wallet already uses the email.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInsufficientFunds occurs when a wallet lacks the balance to cover a
	// requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer indicates sender and receiver are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to the same wallet")

	// ErrInvalidAmount indicates a non-positive amount (or a negative initial
	// balance) was supplied.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrTransientStore marks store failures (deadlock, lock timeout,
	// serialization conflict) where nothing committed and the caller may
	// safely retry the whole operation.
	ErrTransientStore = errors.New("transient store failure")
)
