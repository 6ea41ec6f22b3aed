package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clusterview/clusterview/config"
	"github.com/clusterview/clusterview/internal/adapters/slurmrest"
	"github.com/clusterview/clusterview/internal/adapters/snapcache"
	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/observability/statsd"
	"github.com/clusterview/clusterview/internal/service"
)

// InitMetrics constructs the statsd sink, or a noop when metrics are
// disabled.
//
//nolint:ireturn // callers program against the Sink interface.
func InitMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, func()) {
	if !cfg.IsEnabled() {
		return statsd.Noop{}, func() {}
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  "clusterview",
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("statsd unavailable, metrics disabled", "error", err)
		return statsd.Noop{}, func() {}
	}
	return client, func() { _ = client.Close() }
}

// InitSnapshotCache connects the Redis-backed snapshot cache when enabled.
// Returns a nil cache when disabled or unreachable; the engine runs without
// fallback data in that case.
//
//nolint:ireturn // callers program against the SnapshotCache interface.
func InitSnapshotCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (core.SnapshotCache, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("snapshot cache unreachable, running without fallback",
			"addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil, func() {}
	}

	logger.Info("snapshot cache connected", "addr", cfg.RedisAddr, "ttl", cfg.SnapshotTTL)
	cache := snapcache.NewWithOptions(client, "", cfg.SnapshotTTL)
	return cache, func() { _ = client.Close() }
}

// BuildManager wires the full sync engine from configuration. When the host
// list is not configured it is fetched from the backend.
func BuildManager(ctx context.Context, cfg config.AppConfig, logger *slog.Logger, metrics statsd.Sink, cache core.SnapshotCache) (*service.Manager, error) {
	api, err := slurmrest.NewClient(slurmrest.Options{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.Key,
		HTTPClient: &http.Client{Timeout: cfg.API.RequestTimeout},
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create REST client: %w", err)
	}

	hosts := cfg.Sync.Hosts
	if len(hosts) == 0 {
		hosts, err = api.Hosts(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover hosts: %w", err)
		}
		logger.Info("discovered hosts from backend", "hosts", hosts)
	}

	manager, err := service.NewManager(service.ManagerOptions{
		API:                    api,
		Hosts:                  hosts,
		WebSocketURL:           cfg.Realtime.URL,
		APIKey:                 cfg.API.Key,
		Cache:                  cache,
		PollInterval:           cfg.Sync.PollInterval,
		DebounceWindow:         cfg.Sync.DebounceWindow,
		InitialBackoff:         cfg.Realtime.InitialBackoff,
		MaxBackoff:             cfg.Realtime.MaxBackoff,
		InitialSnapshotTimeout: cfg.Sync.InitialSnapshotTimeout,
		Logger:                 logger,
		Metrics:                metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create sync manager: %w", err)
	}
	return manager, nil
}
