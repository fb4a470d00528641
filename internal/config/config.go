package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the flat process configuration, loaded once at startup via
// viper. Ambient process concerns come first, then the moderation
// domain stack.
type Config struct {
	Port               int    `mapstructure:"port"`
	LogLevel           string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat          string `mapstructure:"log_format"` // json | console
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	PrometheusEnabled  bool   `mapstructure:"prometheus_enabled"`
	TLSEnabled         bool   `mapstructure:"tls_enabled"`
	TLSCertPath        string `mapstructure:"tls_cert_path"`
	TLSKeyPath         string `mapstructure:"tls_key_path"`
	GRPCPort           int    `mapstructure:"grpc_port"` // carried as inert config; no gRPC server in this build

	// Durable store
	DatabaseDriver string `mapstructure:"database_driver"` // postgres | sqlite
	DatabaseURL    string `mapstructure:"database_url"`
	SQLitePath     string `mapstructure:"sqlite_path"`

	// Counter store (rate limiter)
	RedisURL string `mapstructure:"redis_url"`

	// Classification pipeline
	MLModelPath             string   `mapstructure:"ml_model_path"`
	MLBatchSize             int      `mapstructure:"ml_batch_size"`
	MinConfidenceThreshold  float64  `mapstructure:"min_confidence_threshold"`
	ClassificationCacheSize int      `mapstructure:"classification_cache_size"`
	SupportedLanguages      []string `mapstructure:"supported_languages"`
	MinLangConfidence       float64  `mapstructure:"min_lang_confidence"`
	MaxConcurrentInferences int      `mapstructure:"max_concurrent_inferences"`
	MLInferenceTimeoutMs    int      `mapstructure:"ml_inference_timeout_ms"`
	ModelHealthCheckSec     int      `mapstructure:"model_health_check_sec"`

	// Signal store / pipeline
	PipelineWorkers      int `mapstructure:"pipeline_workers"`
	MaxSignals           int `mapstructure:"max_signals"`
	SignalTTLHours        int `mapstructure:"signal_ttl_hours"`
	SignalCleanupIntervalMin int `mapstructure:"signal_cleanup_interval_min"`

	// Report/investigation manager
	MaxReportsPerUser     int     `mapstructure:"max_reports_per_user"`
	ReportWindowHours     int     `mapstructure:"report_window_hours"`
	DerivedSignalTTLDays  int     `mapstructure:"derived_signal_ttl_days"`
	EscalationThreshold   float64 `mapstructure:"escalation_threshold"`
	Specialists           []string `mapstructure:"specialists"`

	// Rate limiter
	RateLimitRequests int `mapstructure:"rate_limit_requests"`
	RateLimitWindowMs int `mapstructure:"rate_limit_window_ms"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/modcore/")
	viper.AddConfigPath("$HOME/.modcore")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("tls_enabled", false)
	viper.SetDefault("tls_cert_path", "")
	viper.SetDefault("tls_key_path", "")
	viper.SetDefault("grpc_port", 50051)

	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_url", "")
	viper.SetDefault("sqlite_path", "./modcore.db")

	viper.SetDefault("redis_url", "redis://localhost:6379/0")

	viper.SetDefault("ml_model_path", "")
	viper.SetDefault("ml_batch_size", 32)
	viper.SetDefault("min_confidence_threshold", 0.6)
	viper.SetDefault("classification_cache_size", 10000)
	viper.SetDefault("supported_languages", []string{"en", "es", "fr", "de", "pt"})
	viper.SetDefault("min_lang_confidence", 0.7)
	viper.SetDefault("max_concurrent_inferences", 16)
	viper.SetDefault("ml_inference_timeout_ms", 2000)
	viper.SetDefault("model_health_check_sec", 30)

	viper.SetDefault("pipeline_workers", 8)
	viper.SetDefault("max_signals", 10000)
	viper.SetDefault("signal_ttl_hours", 24)
	viper.SetDefault("signal_cleanup_interval_min", 60)

	viper.SetDefault("max_reports_per_user", 10)
	viper.SetDefault("report_window_hours", 24)
	viper.SetDefault("derived_signal_ttl_days", 30)
	viper.SetDefault("escalation_threshold", 0.75)
	viper.SetDefault("specialists", []string{"specialist-1", "specialist-2", "specialist-3"})

	viper.SetDefault("rate_limit_requests", 100)
	viper.SetDefault("rate_limit_window_ms", 60000)

	viper.SetEnvPrefix("MODCORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		parts := strings.Split(cfg.AllowedOrigins[0], ",")
		cfg.AllowedOrigins = make([]string, 0, len(parts))
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return &cfg, nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c *Config) SignalTTL() time.Duration {
	return time.Duration(c.SignalTTLHours) * time.Hour
}

func (c *Config) SignalCleanupInterval() time.Duration {
	return time.Duration(c.SignalCleanupIntervalMin) * time.Minute
}

func (c *Config) ReportWindow() time.Duration {
	return time.Duration(c.ReportWindowHours) * time.Hour
}

func (c *Config) DerivedSignalTTL() time.Duration {
	return time.Duration(c.DerivedSignalTTLDays) * 24 * time.Hour
}

func (c *Config) MLInferenceTimeout() time.Duration {
	return time.Duration(c.MLInferenceTimeoutMs) * time.Millisecond
}

func (c *Config) ModelHealthCheckInterval() time.Duration {
	return time.Duration(c.ModelHealthCheckSec) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}
