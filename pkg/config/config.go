package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "POS_APP_ENV"
	EnvPort                = "POS_APP_PORT"
	EnvLogLevel            = "POS_LOG_LEVEL"
	EnvRedisURL            = "POS_REDIS_URL"
	EnvRedisEnabled        = "POS_REDIS_ENABLED"
	EnvBackendBaseURL      = "POS_BACKEND_BASE_URL"
	EnvBackendTimeout      = "POS_BACKEND_TIMEOUT"
	EnvJWTSecret           = "POS_JWT_SECRET"
	EnvCartTaxRate         = "POS_CART_TAX_RATE"
	EnvCartQuantityPolicy  = "POS_CART_QUANTITY_POLICY"
	EnvCartSessionTTL      = "POS_CART_SESSION_TTL"
	EnvPaymentPollInterval = "POS_PAYMENT_POLL_INTERVAL"
	EnvPaymentMaxPolls     = "POS_PAYMENT_MAX_POLLS"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Backend  BackendConfig
	Breaker  BreakerConfig
	JWT      JWTConfig
	Cart     CartConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("%s is required when redis is enabled", EnvRedisURL)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"POS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	Enabled      bool          `envconfig:"POS_REDIS_ENABLED" default:"true"`
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BackendConfig points at the MIS REST API that owns every persistent record.
type BackendConfig struct {
	BaseURL string        `envconfig:"POS_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"POS_BACKEND_TIMEOUT" default:"15s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

type BreakerConfig struct {
	MaxRequests         uint32        `envconfig:"POS_BREAKER_MAX_REQUESTS" default:"1"`
	Interval            time.Duration `envconfig:"POS_BREAKER_INTERVAL" default:"60s"`
	OpenTimeout         time.Duration `envconfig:"POS_BREAKER_OPEN_TIMEOUT" default:"30s"`
	ConsecutiveFailures uint32        `envconfig:"POS_BREAKER_CONSECUTIVE_FAILURES" default:"5"`
}

// JWTConfig verifies tokens minted by the MIS backend. An empty secret means
// tokens are decoded and expiry-checked only; the backend remains the authority.
type JWTConfig struct {
	Secret string `envconfig:"POS_JWT_SECRET"`
	Issuer string `envconfig:"POS_JWT_ISSUER"`
}

type CartConfig struct {
	TaxRate        string        `envconfig:"POS_CART_TAX_RATE" default:"0.16"`
	QuantityPolicy string        `envconfig:"POS_CART_QUANTITY_POLICY" default:"unchecked"`
	SessionTTL     time.Duration `envconfig:"POS_CART_SESSION_TTL" default:"12h"`
}

func (c CartConfig) validate() error {
	switch c.QuantityPolicy {
	case "unchecked", "enforce_stock":
	default:
		return fmt.Errorf("%s must be unchecked or enforce_stock", EnvCartQuantityPolicy)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("%s cannot be negative", EnvCartSessionTTL)
	}
	return nil
}

type PaymentConfig struct {
	PollInterval time.Duration `envconfig:"POS_PAYMENT_POLL_INTERVAL" default:"5s"`
	MaxPolls     int           `envconfig:"POS_PAYMENT_MAX_POLLS" default:"24"`
}

func (p PaymentConfig) validate() error {
	if p.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentPollInterval)
	}
	if p.MaxPolls <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymentMaxPolls)
	}
	return nil
}

type CheckoutConfig struct {
	SessionRetention time.Duration `envconfig:"POS_CHECKOUT_SESSION_RETENTION" default:"15m"`
	SweepInterval    time.Duration `envconfig:"POS_CHECKOUT_SWEEP_INTERVAL" default:"1m"`
	IdempotencyTTL   time.Duration `envconfig:"POS_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}
