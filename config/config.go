package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Stripe            StripeConfig
	Chapa             ChapaConfig
	Checkout          CheckoutConfig
	RateLimit         RateLimitConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName      string
	APIKey           string
	Env              string
	PublicOrigin     string
	ProductionDomain string
}

func (c AppConfig) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type StripeConfig struct {
	SecretKey   string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

type ChapaConfig struct {
	SecretKey          string
	APIBaseURL         string
	CustomizationTitle string
	HTTPTimeout        time.Duration
}

type CheckoutConfig struct {
	HomeCurrency          string
	DefaultCurrency       string
	MaxAmount             decimal.Decimal
	DuplicateWindow       time.Duration
	ReturnPath            string
	CallbackPath          string
	PendingTimeout        time.Duration
	StaleInitializedAfter time.Duration
	JobBatchSize          int32
}

type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

type JobsConfig struct {
	ExpireStaleInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	homeCurrency := strings.ToUpper(getEnv("CHECKOUT_HOME_CURRENCY", "ETB"))

	return &Config{
		App: AppConfig{
			ServiceName:      getEnv("APP_SERVICE_NAME", "checkout-service"),
			APIKey:           getEnv("APP_API_KEY", ""),
			Env:              getEnv("APP_ENV", "development"),
			PublicOrigin:     getEnv("APP_PUBLIC_ORIGIN", ""),
			ProductionDomain: getEnv("APP_PRODUCTION_DOMAIN", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Stripe: StripeConfig{
			SecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
			APIBaseURL:  getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
			HTTPTimeout: getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Chapa: ChapaConfig{
			SecretKey:          getEnv("CHAPA_SECRET_KEY", ""),
			APIBaseURL:         getEnv("CHAPA_API_BASE_URL", "https://api.chapa.co"),
			CustomizationTitle: getEnv("CHAPA_CUSTOMIZATION_TITLE", "School Payment"),
			HTTPTimeout:        getSecondsEnv("CHAPA_HTTP_TIMEOUT_SECONDS", 15*time.Second),
		},
		Checkout: CheckoutConfig{
			HomeCurrency:          homeCurrency,
			DefaultCurrency:       strings.ToUpper(getEnv("CHECKOUT_DEFAULT_CURRENCY", homeCurrency)),
			MaxAmount:             getDecimalEnv("CHECKOUT_MAX_AMOUNT", decimal.NewFromInt(1000000)),
			DuplicateWindow:       getSecondsEnv("CHECKOUT_DUPLICATE_WINDOW_SECONDS", 5*time.Minute),
			ReturnPath:            getEnv("CHECKOUT_RETURN_PATH", "/payments/return"),
			CallbackPath:          getEnv("CHECKOUT_CALLBACK_PATH", "/payments/callback"),
			PendingTimeout:        getMinutesEnv("CHECKOUT_PENDING_TIMEOUT_MINUTES", 24*time.Hour),
			StaleInitializedAfter: getMinutesEnv("CHECKOUT_STALE_INITIALIZED_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:          int32(getIntEnv("CHECKOUT_JOB_BATCH_SIZE", 100)),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: getIntEnv("RATE_LIMIT_MAX_ATTEMPTS", 5),
			Window:      getSecondsEnv("RATE_LIMIT_WINDOW_SECONDS", 10*time.Minute),
		},
		Jobs: JobsConfig{
			ExpireStaleInterval: getMinutesEnv("CHECKOUT_EXPIRE_STALE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
