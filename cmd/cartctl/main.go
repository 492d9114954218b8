package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shopping-cart/internal/cart"
	"github.com/noah-isme/shopping-cart/internal/config"
	"github.com/noah-isme/shopping-cart/internal/obs"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// key needs neither configuration nor Redis.
	if os.Args[1] == "key" {
		logger := obs.NewLoggerTo(os.Stderr, "console", "info")
		if err := run(ctx, os.Args[1:], &app{in: os.Stdin, out: os.Stdout}); err != nil {
			logger.Error().Err(err).Str("cmd", "key").Msg("cartctl failed")
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.NewLoggerTo(os.Stderr, cfg.LogFormat, cfg.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("cmd", os.Args[1]).
		Logger()

	if err := execute(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("cartctl failed")
		os.Exit(1)
	}
}

func execute(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.OTelEnabled,
		ServiceName:   "cartctl",
		Endpoint:      cfg.OTelEndpoint,
		SamplingRatio: cfg.OTelSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown tracer")
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}()
	if cfg.OTelEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := obs.NewCartStoreMetrics(cfg.MetricsNamespace, cfg.MetricsBuckets, reg)
	store := cart.NewStore(client, cart.StoreOptions{
		Prefix:  cfg.CartKeyPrefix,
		TTL:     cfg.CartTTL,
		LockTTL: cfg.CartLockTTL,
		Logger:  &logger,
		Metrics: metrics,
	})

	runErr := run(ctx, os.Args[1:], &app{store: store, in: os.Stdin, out: os.Stdout})
	if cfg.PushgatewayURL != "" {
		if err := push.New(cfg.PushgatewayURL, "cartctl").Gatherer(reg).Push(); err != nil {
			logger.Warn().Err(err).Msg("push metrics")
		}
	}
	return runErr
}
