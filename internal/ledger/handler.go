package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaultpay/vaultpay/internal/wallet"
)

// Handler exposes the engine's operations over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type createWalletRequest struct {
	FullName string          `json:"fullname"`
	Email    string          `json:"email"`
	Balance  decimal.Decimal `json:"balance"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	SenderID   string          `json:"sender_id"`
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// CreateWallet provisions a new wallet.
func (h *Handler) CreateWallet(c *fiber.Ctx) error {
	var req createWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.FullName == "" || req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "fullname and email are required")
	}

	w, err := h.engine.CreateWallet(c.UserContext(), CreateWalletInput{
		FullName:       req.FullName,
		Email:          req.Email,
		InitialBalance: req.Balance,
	})
	if err != nil {
		return asHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(w)
}

// GetBalance returns the wallet's current balance.
func (h *Handler) GetBalance(c *fiber.Ctx) error {
	id, err := parseWalletID(c)
	if err != nil {
		return err
	}
	balance, err := h.engine.GetBalance(c.UserContext(), id)
	if err != nil {
		return asHTTPError(err)
	}
	return c.JSON(fiber.Map{"wallet_id": id, "balance": balance})
}

// Deposit adds funds to the wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	id, err := parseWalletID(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.engine.Deposit(c.UserContext(), id, req.Amount)
	if err != nil {
		return asHTTPError(err)
	}
	return c.JSON(fiber.Map{"wallet_id": id, "balance": balance})
}

// Withdraw removes funds from the wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	id, err := parseWalletID(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	balance, err := h.engine.Withdraw(c.UserContext(), id, req.Amount)
	if err != nil {
		return asHTTPError(err)
	}
	return c.JSON(fiber.Map{"wallet_id": id, "balance": balance})
}

// Transfer moves funds between two wallets.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid sender_id")
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid receiver_id")
	}

	res, err := h.engine.Transfer(c.UserContext(), senderID, receiverID, req.Amount)
	if err != nil {
		return asHTTPError(err)
	}
	return c.JSON(res)
}

// ListTransactions returns a page of the wallet's transaction history.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	id, err := parseWalletID(c)
	if err != nil {
		return err
	}

	kind := wallet.TransactionKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		return fiber.NewError(http.StatusBadRequest, "invalid kind filter")
	}

	page, err := h.engine.ListTransactions(c.UserContext(), wallet.ListQuery{
		WalletID: id,
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 10),
		Kind:     kind,
	})
	if err != nil {
		return asHTTPError(err)
	}
	return c.JSON(page)
}

func parseWalletID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("walletId"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid wallet id")
	}
	return id, nil
}

// asHTTPError maps the domain error taxonomy onto HTTP status codes so
// callers can branch on the outcome.
func asHTTPError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrEmailTaken):
		return fiber.NewError(http.StatusConflict, wallet.ErrEmailTaken.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, wallet.ErrInsufficientFunds.Error())
	case errors.Is(err, wallet.ErrSelfTransfer), errors.Is(err, wallet.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrTransientStore):
		// Nothing committed; the client may retry.
		return fiber.NewError(http.StatusServiceUnavailable, wallet.ErrTransientStore.Error())
	default:
		return err
	}
}
