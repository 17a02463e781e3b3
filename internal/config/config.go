package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultAppName         = "PointVest"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultNotifyTimeout   = 5 * time.Second
	defaultCatalogCacheTTL = 5 * time.Minute
	defaultJobLockTTL      = 30 * time.Minute
	defaultAMQPExchange    = "pointvest.notifications"
	defaultJobSchedule     = "0 0 * * *"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	AMQPExchange   string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	Fees      Fees
	Funding   Funding
	Referral  decimal.Decimal
	Approvers []string

	NotifyTimeout   time.Duration
	CatalogCacheTTL time.Duration
	Jobs            Jobs
}

// Fees configures the fee policy.
type Fees struct {
	DepositPct    decimal.Decimal
	WithdrawalPct decimal.Decimal
	ExemptRoles   []string
}

// Funding configures deposit and withdrawal submission rules.
type Funding struct {
	MinDeposit     decimal.Decimal
	MinWithdrawal  decimal.Decimal
	ConversionRate decimal.Decimal
	PaymentMethods []string
	Networks       []string
}

// Jobs configures the batch scheduler. Renewal always runs right after
// income on Schedule.
type Jobs struct {
	Schedule string
	Location *time.Location
	LockTTL  time.Duration
}

// Load reads a local .env if present, then populates a Config from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv populates a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", defaultAMQPExchange),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		Approvers:      getList("APPROVER_ROLES", []string{"finance", "admin"}),
		Jobs: Jobs{
			Schedule: getEnv("JOB_SCHEDULE", defaultJobSchedule),
		},
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	var err error
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", defaultNotifyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", defaultCatalogCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.Jobs.LockTTL, err = getDuration("JOB_LOCK_TTL", defaultJobLockTTL); err != nil {
		return Config{}, err
	}

	cfg.Fees.ExemptRoles = getList("FEE_EXEMPT_ROLES", []string{"admin"})
	if cfg.Fees.DepositPct, err = getPercent("DEPOSIT_FEE_PCT", "15"); err != nil {
		return Config{}, err
	}
	if cfg.Fees.WithdrawalPct, err = getPercent("WITHDRAWAL_FEE_PCT", "15"); err != nil {
		return Config{}, err
	}
	if cfg.Referral, err = getPercent("REFERRAL_BONUS_PCT", "10"); err != nil {
		return Config{}, err
	}

	cfg.Funding.PaymentMethods = getList("PAYMENT_METHODS", []string{"bank_transfer", "usdt", "card"})
	cfg.Funding.Networks = getList("WITHDRAWAL_NETWORKS", []string{"TRC20", "ERC20", "BEP20"})
	if cfg.Funding.MinDeposit, err = getDecimal("MIN_DEPOSIT", "10"); err != nil {
		return Config{}, err
	}
	if cfg.Funding.MinWithdrawal, err = getDecimal("MIN_WITHDRAWAL", "20"); err != nil {
		return Config{}, err
	}
	if cfg.Funding.ConversionRate, err = getDecimal("SECONDARY_CONVERSION_RATE", "1"); err != nil {
		return Config{}, err
	}
	if !cfg.Funding.ConversionRate.IsPositive() {
		return Config{}, fmt.Errorf("invalid SECONDARY_CONVERSION_RATE: must be positive")
	}

	tz := getEnv("SCHEDULER_TZ", "UTC")
	if cfg.Jobs.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid SCHEDULER_TZ: %w", err)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether in-memory fallbacks are allowed.
func (c Config) IsDev() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
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

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
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

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func getPercent(key, fallback string) (decimal.Decimal, error) {
	d, err := getDecimal(key, fallback)
	if err != nil {
		return decimal.Zero, err
	}
	if d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("invalid %s: must be at most 100", key)
	}
	return d, nil
}
