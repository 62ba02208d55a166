package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "PaisaPlay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 720 * time.Hour

	// Policy seed values used until the admin console overrides them.
	defaultTokenPrice      = int64(10) // PKR paisa per token
	defaultSellFeePct      = 5.0       // sell-to-admin fee
	defaultMarketFeePct    = 2.0       // P2P marketplace fee
	defaultPriceAdjustPct  = 1.0       // price move when volume threshold trips
	defaultVolumeThreshold = int64(100_000)
	defaultMinWithdrawal   = int64(500)
	defaultMinDeposit      = int64(100)

	defaultAdjustSchedule = "@every 5m"
	defaultAdminAccountID = "admin"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminAccountID is the house account that collects fees and funds
	// token buy-backs.
	AdminAccountID string

	// AdjustSchedule is the cron spec for the economy price-adjustment check.
	AdjustSchedule string

	// Policy seed values consumed by the policy source.
	TokenPrice      int64
	SellFeePct      float64
	MarketFeePct    float64
	PriceAdjustPct  float64
	VolumeThreshold int64
	MinWithdrawal   int64
	MinDeposit      int64
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		Env:             getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		RefreshSecret:   getEnv("REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:  defaultAccessTTL,
		RefreshTokenTTL: defaultRefreshTTL,
		AdminAccountID:  getEnv("ADMIN_ACCOUNT_ID", defaultAdminAccountID),
		AdjustSchedule:  getEnv("ECONOMY_ADJUST_SCHEDULE", defaultAdjustSchedule),
		TokenPrice:      defaultTokenPrice,
		SellFeePct:      defaultSellFeePct,
		MarketFeePct:    defaultMarketFeePct,
		PriceAdjustPct:  defaultPriceAdjustPct,
		VolumeThreshold: defaultVolumeThreshold,
		MinWithdrawal:   defaultMinWithdrawal,
		MinDeposit:      defaultMinDeposit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.TokenPrice, err = int64Env("TOKEN_PRICE", cfg.TokenPrice); err != nil {
		return Config{}, err
	}
	if cfg.VolumeThreshold, err = int64Env("VOLUME_THRESHOLD", cfg.VolumeThreshold); err != nil {
		return Config{}, err
	}
	if cfg.MinWithdrawal, err = int64Env("MIN_WITHDRAWAL", cfg.MinWithdrawal); err != nil {
		return Config{}, err
	}
	if cfg.MinDeposit, err = int64Env("MIN_DEPOSIT", cfg.MinDeposit); err != nil {
		return Config{}, err
	}
	if cfg.SellFeePct, err = floatEnv("SELL_FEE_PCT", cfg.SellFeePct); err != nil {
		return Config{}, err
	}
	if cfg.MarketFeePct, err = floatEnv("MARKET_FEE_PCT", cfg.MarketFeePct); err != nil {
		return Config{}, err
	}
	if cfg.PriceAdjustPct, err = floatEnv("PRICE_ADJUST_PCT", cfg.PriceAdjustPct); err != nil {
		return Config{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment, where
// Postgres and Redis may be absent and in-memory backends are used instead.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
