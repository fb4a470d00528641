package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got %s", cfg.LogFormat)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("Expected default database driver 'sqlite', got %s", cfg.DatabaseDriver)
	}
	if cfg.MinConfidenceThreshold != 0.6 {
		t.Errorf("Expected default min confidence threshold 0.6, got %v", cfg.MinConfidenceThreshold)
	}
	if cfg.RateLimitRequests != 100 {
		t.Errorf("Expected default rate limit requests 100, got %d", cfg.RateLimitRequests)
	}
	if cfg.TLSEnabled {
		t.Error("Expected default TLS to be disabled")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("MODCORE_PORT", "9000")
	os.Setenv("MODCORE_LOG_LEVEL", "debug")
	os.Setenv("MODCORE_DATABASE_DRIVER", "postgres")
	defer func() {
		os.Unsetenv("MODCORE_PORT")
		os.Unsetenv("MODCORE_LOG_LEVEL")
		os.Unsetenv("MODCORE_DATABASE_DRIVER")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("Expected database driver 'postgres' from env, got %s", cfg.DatabaseDriver)
	}
}

func TestLoad_AllowedOriginsCommaSeparated(t *testing.T) {
	os.Setenv("MODCORE_ALLOWED_ORIGINS", "http://localhost:3000,https://example.com")
	defer os.Unsetenv("MODCORE_ALLOWED_ORIGINS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 allowed origins, got %d: %v", len(cfg.AllowedOrigins), cfg.AllowedOrigins)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should not error when config file is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil even without config file")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		RequestTimeoutSec:       30,
		ShutdownTimeoutSec:      15,
		SignalTTLHours:          24,
		SignalCleanupIntervalMin: 60,
		ReportWindowHours:       24,
		DerivedSignalTTLDays:    30,
		MLInferenceTimeoutMs:    2000,
		ModelHealthCheckSec:     30,
		RateLimitWindowMs:       60000,
	}

	if cfg.RequestTimeout().Seconds() != 30 {
		t.Errorf("unexpected request timeout: %v", cfg.RequestTimeout())
	}
	if cfg.SignalTTL().Hours() != 24 {
		t.Errorf("unexpected signal TTL: %v", cfg.SignalTTL())
	}
	if cfg.DerivedSignalTTL().Hours() != 30*24 {
		t.Errorf("unexpected derived signal TTL: %v", cfg.DerivedSignalTTL())
	}
}
