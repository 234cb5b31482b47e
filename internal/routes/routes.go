package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/vault_ledger/internal/audit"
	"github.com/congo-pay/vault_ledger/internal/auth"
	"github.com/congo-pay/vault_ledger/internal/config"
	"github.com/congo-pay/vault_ledger/internal/fee"
	"github.com/congo-pay/vault_ledger/internal/funding"
	"github.com/congo-pay/vault_ledger/internal/identity"
	"github.com/congo-pay/vault_ledger/internal/ledger"
	"github.com/congo-pay/vault_ledger/internal/lock"
	"github.com/congo-pay/vault_ledger/internal/middleware"
	"github.com/congo-pay/vault_ledger/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes. Sink may be
// nil, in which case vault events are only logged.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Sink   audit.Sink
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	fees, err := fee.ParseRate(d.Cfg.FeeRate)
	if err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		ledgerBackend ledger.Ledger
		vaultRepo     vault.Repository
		identityRepo  identity.Repository
		locker        lock.Locker
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		vaultRepo = vault.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		vaultRepo = vault.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		locker = lock.NewRedisLocker(d.Cache, d.Cfg.LockTTL, d.Logger)
	} else {
		locker = lock.NewKeyedMutex()
	}
	sink := d.Sink
	if sink == nil {
		sink = audit.NewLoggerSink(d.Logger)
	}

	vaultSvc := vault.NewService(vaultRepo, ledgerBackend, vault.Options{
		Fees:             fees,
		Sink:             sink,
		Locker:           locker,
		Logger:           d.Logger,
		DefaultCollector: d.Cfg.FeeCollector,
	})
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(auth.Settings{
		AccessSecret:  d.Cfg.JWTSecret,
		RefreshSecret: d.Cfg.RefreshSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	}, identityRepo)
	fundingSvc, err := funding.NewService(context.Background(), ledgerBackend, nil)
	if err != nil {
		return err
	}

	identityHandler := identity.NewHandler(identitySvc)
	authHandler := auth.NewHandler(identitySvc, authSvc, vaultSvc)
	vaultHandler := vault.NewHandler(vaultSvc)
	fundingHandler := funding.NewHandler(fundingSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"fee_rate":   fees.Rate().String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identityHandler)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterProfileRoutes(protected, identityHandler)
	RegisterVaultRoutes(protected, vaultHandler)
	RegisterFundingRoutes(protected, fundingHandler)

	return nil
}
