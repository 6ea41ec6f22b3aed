// Command clusterview runs the multi-host job sync engine against a
// clusterview backend, mirroring SLURM job state into its in-memory store and
// logging job state transitions as they arrive.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clusterview/clusterview/config"
	"github.com/clusterview/clusterview/internal/bootstrap"
	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/pubsub"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	logger := bootstrap.InitLogger(cfg.IsDev)

	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	logStartupInfo(ctx, logger, &cfg)

	metrics, closeMetrics := bootstrap.InitMetrics(cfg.Observability.Metrics, logger)
	defer closeMetrics()

	cache, closeCache := bootstrap.InitSnapshotCache(ctx, cfg.Cache, logger)
	defer closeCache()

	manager, err := bootstrap.BuildManager(ctx, cfg, logger, metrics, cache)
	if err != nil {
		return err
	}
	defer manager.Destroy()

	manager.Start(ctx)
	go watchConnection(ctx, logger, manager.ConnectionStatus())
	go watchHostStates(ctx, logger, manager.HostStates())
	go watchJobs(ctx, logger, manager.Jobs())

	// Block until interrupted.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.InfoContext(ctx, "shutdown signal received")
	return nil
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting clusterview sync engine",
		"api_base_url", cfg.API.BaseURL,
		"hosts", cfg.Sync.Hosts,
		"realtime_enabled", cfg.Realtime.IsEnabled(),
		"cache_enabled", cfg.Cache.Enabled,
		"poll_interval", cfg.Sync.PollInterval)
}

func watchConnection(ctx context.Context, logger *slog.Logger, status *pubsub.Subject[model.ConnectionStatus]) {
	if status == nil {
		return
	}
	unsub, ch := status.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			logger.InfoContext(ctx, "connection status changed",
				"connected", st.Connected, "source", st.Source)
		}
	}
}

func watchHostStates(ctx context.Context, logger *slog.Logger, states *pubsub.Subject[map[string]model.HostSyncState]) {
	unsub, ch := states.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case byHost, ok := <-ch:
			if !ok {
				return
			}
			for _, st := range byHost {
				if st.Status == model.HostSyncError {
					logger.WarnContext(ctx, "host sync degraded",
						"hostname", st.Hostname,
						"error", st.Err,
						"timeout", st.IsTimeout,
						"data_source", st.DataSource)
				}
			}
		}
	}
}

func watchJobs(ctx context.Context, logger *slog.Logger, jobs *pubsub.Subject[[]model.JobRecord]) {
	unsub, ch := jobs.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case records, ok := <-ch:
			if !ok {
				return
			}
			logger.DebugContext(ctx, "job snapshot updated", "count", len(records))
		}
	}
}
