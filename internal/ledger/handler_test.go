package ledger

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaultpay/vaultpay/internal/wallet"
)

func setupTestApp(t *testing.T) (*fiber.App, *Engine) {
	t.Helper()
	engine, _, _, _ := newTestEngine(t)
	handler := NewHandler(engine)

	app := fiber.New()
	app.Post("/wallets", handler.CreateWallet)
	app.Post("/wallets/transfer", handler.Transfer)
	app.Get("/wallets/:walletId/balance", handler.GetBalance)
	app.Post("/wallets/:walletId/deposit", handler.Deposit)
	app.Post("/wallets/:walletId/withdraw", handler.Withdraw)
	app.Get("/wallets/:walletId/transactions", handler.ListTransactions)
	return app, engine
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, payload
}

func TestCreateWalletEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, payload := doJSON(t, app, fiber.MethodPost, "/wallets",
		`{"fullname":"Jane Doe","email":"jane@x.com","balance":"100"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d: %s", fiber.StatusCreated, status, payload)
	}

	var created wallet.Wallet
	if err := json.Unmarshal(payload, &created); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected generated wallet id")
	}
	if !created.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", created.Balance)
	}

	// Same email again conflicts.
	status, _ = doJSON(t, app, fiber.MethodPost, "/wallets",
		`{"fullname":"Jane Doe","email":"jane@x.com"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
}

func TestCreateWalletEndpointRequiresFields(t *testing.T) {
	app, _ := setupTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets", `{"email":"jane@x.com"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestDepositAndBalanceEndpoints(t *testing.T) {
	app, engine := setupTestApp(t)
	w := mustCreate(t, engine, "Jane", "jane@x.com", 0)

	status, payload := doJSON(t, app, fiber.MethodPost, "/wallets/"+w.ID.String()+"/deposit", `{"amount":"40"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d: %s", fiber.StatusOK, status, payload)
	}

	status, payload = doJSON(t, app, fiber.MethodGet, "/wallets/"+w.ID.String()+"/balance", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, status)
	}
	var body struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if !body.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected balance 40, got %s", body.Balance)
	}
}

func TestDepositEndpointRejectsInvalidAmount(t *testing.T) {
	app, engine := setupTestApp(t)
	w := mustCreate(t, engine, "Jane", "jane@x.com", 0)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets/"+w.ID.String()+"/deposit", `{"amount":"-5"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestWithdrawEndpointInsufficientFunds(t *testing.T) {
	app, engine := setupTestApp(t)
	w := mustCreate(t, engine, "Jane", "jane@x.com", 10)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets/"+w.ID.String()+"/withdraw", `{"amount":"25"}`)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
}

func TestBalanceEndpointUnknownWallet(t *testing.T) {
	app, _ := setupTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodGet, "/wallets/"+uuid.NewString()+"/balance", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected %d got %d", fiber.StatusNotFound, status)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/wallets/not-a-uuid/balance", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestTransferEndpoint(t *testing.T) {
	app, engine := setupTestApp(t)
	a := mustCreate(t, engine, "Alice", "a@x.com", 100)
	b := mustCreate(t, engine, "Bob", "b@x.com", 10)

	status, payload := doJSON(t, app, fiber.MethodPost, "/wallets/transfer",
		`{"sender_id":"`+a.ID.String()+`","receiver_id":"`+b.ID.String()+`","amount":"30"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d: %s", fiber.StatusOK, status, payload)
	}

	var res TransferResult
	if err := json.Unmarshal(payload, &res); err != nil {
		t.Fatalf("decode transfer result: %v", err)
	}
	if !res.SenderBalance.Equal(decimal.NewFromInt(70)) || !res.ReceiverBalance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected balances: %+v", res)
	}
}

func TestTransferEndpointRejectsSelfAndBadIDs(t *testing.T) {
	app, engine := setupTestApp(t)
	a := mustCreate(t, engine, "Alice", "a@x.com", 100)

	status, _ := doJSON(t, app, fiber.MethodPost, "/wallets/transfer",
		`{"sender_id":"`+a.ID.String()+`","receiver_id":"`+a.ID.String()+`","amount":"5"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("self transfer: expected %d got %d", fiber.StatusBadRequest, status)
	}

	status, _ = doJSON(t, app, fiber.MethodPost, "/wallets/transfer",
		`{"sender_id":"nope","receiver_id":"`+a.ID.String()+`","amount":"5"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("bad sender id: expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	app, engine := setupTestApp(t)
	w := mustCreate(t, engine, "Jane", "jane@x.com", 100)

	status, payload := doJSON(t, app, fiber.MethodGet, "/wallets/"+w.ID.String()+"/transactions?page=1&limit=5", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected %d got %d: %s", fiber.StatusOK, status, payload)
	}
	var page wallet.TransactionPage
	if err := json.Unmarshal(payload, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected the initial deposit row, got %+v", page)
	}
	if page.Items[0].Kind != wallet.KindDeposit {
		t.Fatalf("expected deposit row, got %s", page.Items[0].Kind)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/wallets/"+w.ID.String()+"/transactions?kind=bogus", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("bad kind filter: expected %d got %d", fiber.StatusBadRequest, status)
	}
}
