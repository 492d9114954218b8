package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/shopping-cart/internal/obs"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv           string        `validate:"required"`
	RedisURL         string        `validate:"required"`
	CartKeyPrefix    string        `validate:"required"`
	CartTTL          time.Duration `validate:"gte=0"`
	CartLockTTL      time.Duration `validate:"gt=0"`
	LogLevel         string
	LogFormat        string `validate:"oneof=json console text"`
	MetricsNamespace string `validate:"required"`
	MetricsBuckets   []float64
	PushgatewayURL   string `validate:"omitempty,url"`
	OTelEnabled      bool
	OTelEndpoint     string
	OTelSampling     float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:           valueOrDefault(k.String("APP_ENV"), "development"),
		RedisURL:         strings.TrimSpace(k.String("REDIS_URL")),
		CartKeyPrefix:    valueOrDefault(k.String("CART_KEY_PREFIX"), "cart"),
		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CartLockTTL:      parseDuration(k.String("CART_LOCK_TTL"), "5s"),
		LogLevel:         valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:        strings.ToLower(valueOrDefault(k.String("LOG_FORMAT"), "json")),
		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "shopping_cart"),
		MetricsBuckets:   obs.ParseBucketsCSV(k.String("METRICS_BUCKETS_MS")),
		PushgatewayURL:   strings.TrimSpace(k.String("METRICS_PUSHGATEWAY_URL")),
		OTelEnabled:      parseBool(k.String("OTEL_ENABLED")),
		OTelEndpoint:     strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelSampling:     parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []error
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
