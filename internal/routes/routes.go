package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/paisa-play/paisa_play/internal/account"
	"github.com/paisa-play/paisa_play/internal/auth"
	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/config"
	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/events"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/market"
	"github.com/paisa-play/paisa_play/internal/middleware"
	"github.com/paisa-play/paisa_play/internal/notification"
	"github.com/paisa-play/paisa_play/internal/policy"
	"github.com/paisa-play/paisa_play/internal/redeem"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Services bundles the wired domain services so the caller can hand them to
// background workers after route setup.
type Services struct {
	Transfers *transfer.Service
	Market    *market.Service
	Redeem    *redeem.Service
	Economy   *economy.Service
	Policy    policy.Source
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	ctx := context.Background()

	// Repositories: Postgres when a pool is present, in-memory otherwise.
	var balances balance.Store
	var entries ledger.Repository
	var orders market.Repository
	var codes redeem.Repository
	var accounts account.Repository
	var econRepo economy.Repository
	if d.DB != nil {
		balances = balance.NewPostgresStore(d.DB)
		entries = ledger.NewPostgresRepository(d.DB)
		orders = market.NewPostgresRepository(d.DB)
		codes = redeem.NewPostgresRepository(d.DB)
		accounts = account.NewPostgresRepository(d.DB)
		repo, err := economy.NewPostgresRepository(ctx, d.DB)
		if err != nil {
			return nil, err
		}
		econRepo = repo
	} else {
		balances = balance.NewMemoryStore()
		entries = ledger.NewMemoryRepository()
		orders = market.NewMemoryRepository()
		codes = redeem.NewMemoryRepository()
		accounts = account.NewMemoryRepository()
		econRepo = economy.NewMemoryRepository()
	}

	// Platform policy: shared through Redis when available.
	var policySource policy.Source
	if d.Cache != nil {
		src, err := policy.NewRedisSource(ctx, d.Cache, policy.FromConfig(d.Cfg))
		if err != nil {
			return nil, err
		}
		policySource = src
	} else {
		policySource = policy.NewStaticSource(policy.FromConfig(d.Cfg))
	}

	// Events: fan out over Redis pub/sub when available.
	var bus events.Publisher
	if d.Cache != nil {
		bus = events.NewRedisPublisher(d.Cache, d.Logger)
	} else {
		bus = events.NewBus()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	econSvc := economy.NewService(econRepo, policySource, d.Logger)

	transferSvc, err := transfer.NewService(ctx, balances, entries, econSvc,
		policySource, bus, notifier, d.Logger, d.Cfg.AdminAccountID)
	if err != nil {
		return nil, err
	}
	marketSvc := market.NewService(orders, balances, entries, econSvc,
		policySource, bus, notifier, d.Logger, d.Cfg.AdminAccountID)
	redeemSvc := redeem.NewService(codes, transferSvc, d.Logger)

	accountSvc := account.NewService(accounts, balances)
	authSvc := auth.NewService(d.Cfg, accounts)
	authHandler := auth.NewHandler(accountSvc, authSvc)

	transferHandler := transfer.NewHandler(transferSvc)
	marketHandler := market.NewHandler(marketSvc)
	redeemHandler := redeem.NewHandler(redeemSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("request_id").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, accounts)
	protected := api.Group("", jwtmw)
	protected.Get("/me", func(c *fiber.Ctx) error {
		aid, _ := c.Locals("account_id").(string)
		if aid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		acct, err := accounts.FindByID(c.UserContext(), aid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "account not found")
		}
		return c.JSON(fiber.Map{
			"account_id":   acct.ID,
			"phone":        acct.Phone,
			"display_name": acct.DisplayName,
			"role":         acct.Role,
			"device_id":    acct.DeviceID,
			"created_at":   acct.CreatedAt,
		})
	})
	RegisterWalletRoutes(protected, transferHandler)
	RegisterTokenRoutes(protected, transferHandler)
	RegisterGameRoutes(protected, transferHandler)
	RegisterMarketRoutes(protected, marketHandler)
	RegisterRedeemRoutes(protected, redeemHandler)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireAdmin())
	RegisterAdminRoutes(admin, transferHandler, redeemHandler, econSvc, policySource)

	return &Services{
		Transfers: transferSvc,
		Market:    marketSvc,
		Redeem:    redeemSvc,
		Economy:   econSvc,
		Policy:    policySource,
	}, nil
}
