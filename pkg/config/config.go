package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Platform     PlatformConfig
	Payout       PayoutConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Payout.GasFeeAmount(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PIMART_APP_ENV" required:"true"`
	Port         string `envconfig:"PIMART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PIMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PIMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN             string        `envconfig:"PIMART_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"PIMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIMART_REDIS_URL"`
	Address      string        `envconfig:"PIMART_REDIS_ADDR"`
	Password     string        `envconfig:"PIMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PlatformConfig points at the external custodial payment platform.
type PlatformConfig struct {
	BaseURL        string        `envconfig:"PIMART_PLATFORM_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"PIMART_PLATFORM_API_KEY" required:"true"`
	HorizonBaseURL string        `envconfig:"PIMART_PLATFORM_HORIZON_BASE_URL"`
	Timeout        time.Duration `envconfig:"PIMART_PLATFORM_TIMEOUT" default:"20s"`
}

// PayoutConfig tunes the gas-saver batching policy and the queue worker.
type PayoutConfig struct {
	GasFee        string        `envconfig:"PIMART_PAYOUT_GAS_FEE" default:"0.01"`
	RecencyWindow time.Duration `envconfig:"PIMART_PAYOUT_RECENCY_WINDOW" default:"72h"`
	MaxAttempts   int           `envconfig:"PIMART_PAYOUT_MAX_ATTEMPTS" default:"3"`
	TickInterval  time.Duration `envconfig:"PIMART_PAYOUT_TICK_INTERVAL" default:"1m"`
}

// GasFeeAmount parses the configured per-transaction platform fee.
func (p PayoutConfig) GasFeeAmount() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(p.GasFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing gas fee %q: %w", p.GasFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("gas fee must not be negative, got %s", p.GasFee)
	}
	return fee, nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"PIMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentEventsTopic        string `envconfig:"PIMART_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"pimart-payment-events"`
	PaymentEventsSubscription string `envconfig:"PIMART_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PIMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PIMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PIMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PIMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PIMART_AUTO_MIGRATE" default:"false"`
}
