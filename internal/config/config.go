package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a dotenv file (APP_ENV_FILE, default .env) is loaded
// first when present and never overrides variables already set.
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Monnify MonnifyConfig
	Billing BillingConfig
	Ledger  LedgerConfig
	Funding FundingConfig
	Kafka   KafkaConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string

	// Store selects the persistence backend: postgres or memory.
	// memory is for local runs and is rejected in production.
	Store string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string

	AutoMigrate bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminEmails get the admin role at login.
	AdminEmails []string
}

type MonnifyConfig struct {
	// SecretKey signs webhook bodies (HMAC-SHA512).
	SecretKey string

	CheckoutBaseURL string
	AccountNumber   string
	AccountName     string
	BankName        string

	// IntentTTL is how long a funding intent stays payable.
	IntentTTL time.Duration
}

type BillingConfig struct {
	Currency                  string
	DefaultCostPerMinuteMinor int64

	// MaxConcurrentCalls caps open sessions per caller; 0 disables the cap.
	MaxConcurrentCalls int
	MaxCallDuration    time.Duration
}

type LedgerConfig struct {
	MaxRetries int
}

type FundingConfig struct {
	SweepInterval time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

func Load() (Config, error) {
	var parseErrs []error

	envFile := strings.TrimSpace(os.Getenv("APP_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		parseErrs = append(parseErrs, fmt.Errorf("APP_ENV_FILE %q: %w", envFile, err))
	}

	c := Config{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	c.App.Store = strings.ToLower(strings.TrimSpace(os.Getenv("APP_STORE")))
	if n, err := mustInt("APP_PORT"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt(&parseErrs, "DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.AutoMigrate = optBool("DB_AUTO_MIGRATE")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt(&parseErrs, "REDIS_PORT", 6379)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = optInt(&parseErrs, "REDIS_DB", 0)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.AdminEmails = splitList(strings.ToLower(os.Getenv("AUTH_ADMIN_EMAILS")))

	c.Monnify.SecretKey = os.Getenv("MONNIFY_SECRET_KEY")
	c.Monnify.CheckoutBaseURL = strings.TrimSpace(os.Getenv("MONNIFY_CHECKOUT_BASE_URL"))
	c.Monnify.AccountNumber = strings.TrimSpace(os.Getenv("MONNIFY_ACCOUNT_NUMBER"))
	c.Monnify.AccountName = strings.TrimSpace(os.Getenv("MONNIFY_ACCOUNT_NAME"))
	c.Monnify.BankName = strings.TrimSpace(os.Getenv("MONNIFY_BANK_NAME"))
	c.Monnify.IntentTTL = mustDuration("MONNIFY_INTENT_TTL")

	c.Billing.Currency = strings.ToUpper(strings.TrimSpace(os.Getenv("BILLING_CURRENCY")))
	c.Billing.DefaultCostPerMinuteMinor = int64(optInt(&parseErrs, "BILLING_DEFAULT_COST_PER_MINUTE_MINOR", 0))
	c.Billing.MaxConcurrentCalls = optInt(&parseErrs, "BILLING_MAX_CONCURRENT_CALLS", 3)
	c.Billing.MaxCallDuration = mustDuration("BILLING_MAX_CALL_DURATION")

	c.Ledger.MaxRetries = optInt(&parseErrs, "LEDGER_MAX_RETRIES", 0)
	c.Funding.SweepInterval = mustDuration("FUNDING_SWEEP_INTERVAL")

	c.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	c.Kafka.Topic = strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.Store == "" {
		c.App.Store = StorePostgres
	}
	switch c.App.Store {
	case StorePostgres:
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("APP_STORE=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("APP_STORE must be one of postgres, memory, got %q", c.App.Store))
	}

	if c.UsesPostgres() {
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}

		// The call cap lives in Redis; the memory store runs without it.
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
	}
	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Monnify.SecretKey == "" && c.IsProduction() {
		errs = append(errs, errors.New("MONNIFY_SECRET_KEY is required in production"))
	}
	if c.Monnify.CheckoutBaseURL == "" {
		c.Monnify.CheckoutBaseURL = "https://sandbox.sdk.monnify.com/checkout"
	}
	if c.Monnify.AccountNumber == "" {
		c.Monnify.AccountNumber = "7012345678"
	}
	if c.Monnify.AccountName == "" {
		c.Monnify.AccountName = "Payment Call System"
	}
	if c.Monnify.BankName == "" {
		c.Monnify.BankName = "Wema Bank"
	}
	if c.Monnify.IntentTTL <= 0 {
		c.Monnify.IntentTTL = 24 * time.Hour
	}

	if c.Billing.Currency == "" {
		c.Billing.Currency = "NGN"
	}
	if len(c.Billing.Currency) != 3 {
		errs = append(errs, fmt.Errorf("BILLING_CURRENCY must be an ISO 4217 code, got %q", c.Billing.Currency))
	}
	if c.Billing.DefaultCostPerMinuteMinor < 0 {
		errs = append(errs, fmt.Errorf("BILLING_DEFAULT_COST_PER_MINUTE_MINOR must be positive, got %d", c.Billing.DefaultCostPerMinuteMinor))
	} else if c.Billing.DefaultCostPerMinuteMinor == 0 {
		// 50.00 per minute
		c.Billing.DefaultCostPerMinuteMinor = 5000
	}
	if c.Billing.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("BILLING_MAX_CONCURRENT_CALLS must be >= 0, got %d", c.Billing.MaxConcurrentCalls))
	}
	if c.Billing.MaxCallDuration <= 0 {
		c.Billing.MaxCallDuration = 4 * time.Hour
	}

	if c.Ledger.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_RETRIES must be >= 0, got %d", c.Ledger.MaxRetries))
	} else if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = 3
	}
	if c.Funding.SweepInterval <= 0 {
		c.Funding.SweepInterval = 10 * time.Minute
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		c.Kafka.Topic = "wallet.transactions"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) UsesPostgres() bool {
	return c.App.Store == "" || c.App.Store == StorePostgres
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optInt returns def when key is unset and records a parse error otherwise.
func optInt(errs *[]error, key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func optBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
