package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vaultpay/vaultpay/internal/ledger"
)

// RegisterWalletRoutes wires the ledger engine's endpoints.
func RegisterWalletRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/wallets", h.CreateWallet)
	r.Post("/wallets/transfer", h.Transfer)
	r.Get("/wallets/:walletId/balance", h.GetBalance)
	r.Post("/wallets/:walletId/deposit", h.Deposit)
	r.Post("/wallets/:walletId/withdraw", h.Withdraw)
	r.Get("/wallets/:walletId/transactions", h.ListTransactions)
}
