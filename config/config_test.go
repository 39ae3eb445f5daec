package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/school?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "checkout-test")
	setEnv(t, "APP_ENV", "Production")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "CHECKOUT_HOME_CURRENCY", "etb")
	setEnv(t, "CHECKOUT_MAX_AMOUNT", "2500.50")
	setEnv(t, "CHECKOUT_DUPLICATE_WINDOW_SECONDS", "120")
	setEnv(t, "CHECKOUT_PENDING_TIMEOUT_MINUTES", "11")
	setEnv(t, "CHECKOUT_STALE_INITIALIZED_AFTER_MINUTES", "13")
	setEnv(t, "CHECKOUT_JOB_BATCH_SIZE", "99")
	setEnv(t, "RATE_LIMIT_MAX_ATTEMPTS", "3")
	unsetEnv(t, "CHECKOUT_DEFAULT_CURRENCY")
	unsetEnv(t, "RATE_LIMIT_WINDOW_SECONDS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "checkout-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if !cfg.App.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Checkout.HomeCurrency != "ETB" || cfg.Checkout.DefaultCurrency != "ETB" {
		t.Fatalf("unexpected currencies: home=%s default=%s", cfg.Checkout.HomeCurrency, cfg.Checkout.DefaultCurrency)
	}
	if cfg.Checkout.MaxAmount.String() != "2500.5" {
		t.Fatalf("unexpected max amount: %s", cfg.Checkout.MaxAmount)
	}
	if cfg.Checkout.DuplicateWindow != 2*time.Minute {
		t.Fatalf("unexpected duplicate window: %v", cfg.Checkout.DuplicateWindow)
	}
	if cfg.Checkout.PendingTimeout != 11*time.Minute {
		t.Fatalf("unexpected pending timeout: %v", cfg.Checkout.PendingTimeout)
	}
	if cfg.Checkout.StaleInitializedAfter != 13*time.Minute {
		t.Fatalf("unexpected stale initialized after: %v", cfg.Checkout.StaleInitializedAfter)
	}
	if cfg.Checkout.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Checkout.JobBatchSize)
	}
	if cfg.RateLimit.MaxAttempts != 3 || cfg.RateLimit.Window != 10*time.Minute {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
}
