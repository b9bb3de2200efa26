package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vaultpay/vaultpay/internal/cache"
	"github.com/vaultpay/vaultpay/internal/config"
	"github.com/vaultpay/vaultpay/internal/ledger"
	"github.com/vaultpay/vaultpay/internal/middleware"
	"github.com/vaultpay/vaultpay/internal/notification"
	"github.com/vaultpay/vaultpay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	store := wallet.NewPostgresStore(d.DB)
	cacheLayer := cache.New(d.Cache, d.Logger, cache.Options{
		LockTTL:   d.Cfg.CacheLockTTL,
		LockRetry: d.Cfg.CacheLockWait,
	})
	notifier := notification.NewLoggerNotifier(d.Logger)
	engine := ledger.NewEngine(store, cacheLayer, notifier, d.Logger, ledger.Options{
		ListTTL: d.Cfg.ListCacheTTL,
	})

	api := app.Group("/api/v1")
	RegisterWalletRoutes(api, ledger.NewHandler(engine))

	return nil
}
