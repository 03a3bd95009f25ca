package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"payfast-gateway/internal/apperr"
)

// Published PayFast sandbox merchant.
const (
	SandboxMerchantID  = "10000100"
	SandboxMerchantKey = "46f0cd694581a"
	SandboxPassphrase  = "jt7NOE43FZPn"

	liveHost    = "https://www.payfast.co.za"
	sandboxHost = "https://sandbox.payfast.co.za"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	PayFast  PayFastConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int
}

type DatabaseConfig struct {
	Driver       string // mysql or memory
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ClaimTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	// ConsumeOrders starts the order-created consumer group.
	ConsumeOrders bool
	GroupID       string
	OrderTopics   []string
}

type LogConfig struct {
	Env   string
	Level string
}

// PayFastConfig is built once at startup and passed to every component that
// talks to the gateway. Nothing reads the environment after Load returns.
type PayFastConfig struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	BaseURL     string
	LiveMode    bool

	AllowUnconfirmedSandboxOverride bool
	RequireSignature                bool
	ValidateTimeout                 time.Duration
	SourceTag                       string
	ReferencePrefix                 string

	// Endpoint overrides, used by tests and local gateway stubs.
	ProcessURL  string
	ValidateURL string
}

// Credentials are the values actually sent to the gateway for the configured mode.
type Credentials struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ProcessURL  string
	ValidateURL string
}

func (c PayFastConfig) Environment() string {
	if c.LiveMode {
		return "production"
	}
	return "sandbox"
}

// Credentials selects live or sandbox credentials from LiveMode only.
func (c PayFastConfig) Credentials() Credentials {
	creds := Credentials{
		MerchantID:  SandboxMerchantID,
		MerchantKey: SandboxMerchantKey,
		Passphrase:  SandboxPassphrase,
		ProcessURL:  sandboxHost + "/eng/process",
		ValidateURL: sandboxHost + "/eng/query/validate",
	}
	if c.LiveMode {
		creds = Credentials{
			MerchantID:  c.MerchantID,
			MerchantKey: c.MerchantKey,
			Passphrase:  c.Passphrase,
			ProcessURL:  liveHost + "/eng/process",
			ValidateURL: liveHost + "/eng/query/validate",
		}
	}
	if c.ProcessURL != "" {
		creds.ProcessURL = c.ProcessURL
	}
	if c.ValidateURL != "" {
		creds.ValidateURL = c.ValidateURL
	}
	return creds
}

// SandboxOverrideApplies reports whether an unconfirmed payment for reference
// may be treated as confirmed. Never true in live mode.
func (c PayFastConfig) SandboxOverrideApplies(reference string) bool {
	if c.LiveMode || !c.AllowUnconfirmedSandboxOverride {
		return false
	}
	return c.ReferencePrefix != "" && strings.HasPrefix(reference, c.ReferencePrefix)
}

func Load() *Config {
	live := strings.EqualFold(getEnv("PAYFAST_MODE", "sandbox"), "live")

	return &Config{
		Server: ServerConfig{
			Port:         ":" + strings.TrimPrefix(getEnv("PORT", "8085"), ":"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RateLimit:    getEnvAsInt("RATE_LIMIT_RPS", 100),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("STORE_DRIVER", "mysql"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "root"),
			Password:     os.Getenv("DB_PASSWORD"),
			Database:     getEnv("DB_NAME", "payfast_gateway"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsInt("REDIS_DB", 0),
			ClaimTTL: getEnvAsDuration("IPN_CLAIM_TTL", 72*time.Hour),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ConsumeOrders: getEnvAsBool("KAFKA_CONSUME_ORDERS", false),
			GroupID:       getEnv("KAFKA_GROUP_ID", "payfast-gateway"),
			OrderTopics:   splitList(getEnv("KAFKA_ORDER_TOPICS", "order-created")),
		},
		PayFast: PayFastConfig{
			MerchantID:                      os.Getenv("PAYFAST_MERCHANT_ID"),
			MerchantKey:                     os.Getenv("PAYFAST_MERCHANT_KEY"),
			Passphrase:                      os.Getenv("PAYFAST_PASSPHRASE"),
			BaseURL:                         strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
			LiveMode:                        live,
			AllowUnconfirmedSandboxOverride: getEnvAsBool("PAYFAST_ALLOW_UNCONFIRMED_SANDBOX_OVERRIDE", false),
			RequireSignature:                getEnvAsBool("PAYFAST_REQUIRE_SIGNATURE", live),
			ValidateTimeout:                 getEnvAsDuration("PAYFAST_VALIDATE_TIMEOUT", 10*time.Second),
			SourceTag:                       getEnv("PAYFAST_SOURCE_TAG", "infinite-store-sa"),
			ReferencePrefix:                 getEnv("PAYFAST_REFERENCE_PREFIX", "INF"),
			ProcessURL:                      os.Getenv("PAYFAST_PROCESS_URL"),
			ValidateURL:                     os.Getenv("PAYFAST_VALIDATE_URL"),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate rejects deployments that cannot safely talk to the gateway.
func (c *Config) Validate() error {
	pf := c.PayFast

	if pf.BaseURL == "" {
		return apperr.Configuration("PUBLIC_BASE_URL", "is required")
	}
	u, err := url.Parse(pf.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Configuration("PUBLIC_BASE_URL", "must be an absolute http(s) URL")
	}

	if pf.LiveMode {
		if strings.TrimSpace(pf.MerchantID) == "" {
			return apperr.Configuration("PAYFAST_MERCHANT_ID", "is required in live mode")
		}
		if strings.TrimSpace(pf.MerchantKey) == "" {
			return apperr.Configuration("PAYFAST_MERCHANT_KEY", "is required in live mode")
		}
		if pf.AllowUnconfirmedSandboxOverride {
			return apperr.Configuration("PAYFAST_ALLOW_UNCONFIRMED_SANDBOX_OVERRIDE", "must be disabled in live mode")
		}
	}

	if pf.RequireSignature && strings.TrimSpace(pf.Credentials().Passphrase) == "" {
		return apperr.Configuration("PAYFAST_PASSPHRASE", "is required when signatures are enforced")
	}

	if pf.ValidateTimeout <= 0 {
		return apperr.Configuration("PAYFAST_VALIDATE_TIMEOUT", "must be positive")
	}

	switch c.Database.Driver {
	case "mysql", "memory":
	default:
		return apperr.Configuration("STORE_DRIVER", "must be mysql or memory")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
