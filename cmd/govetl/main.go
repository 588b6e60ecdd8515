package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opendata-br/govetl/internal/config"
	"github.com/opendata-br/govetl/internal/convert"
	"github.com/opendata-br/govetl/internal/etl"
	"github.com/opendata-br/govetl/internal/fetch"
	"github.com/opendata-br/govetl/internal/logging"
	"github.com/opendata-br/govetl/internal/metrics"
	"github.com/opendata-br/govetl/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration (optional)")
	catalogPath := flag.String("catalog", "", "path to TOML endpoint catalog (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	slog.Info("govetl starting", "version", convert.Version, "git_sha", convert.GitSHA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if cfg.Metrics.Enabled {
		metrics.Init("govetl")
		go func() {
			if err := metrics.Serve(metrics.Config{Enabled: true, Address: cfg.Metrics.Address}); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load endpoint catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		slog.Error("failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client, err := fetch.NewClient(time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second)
	if err != nil {
		slog.Error("failed to create download client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	checkpoint, err := etl.NewCheckpointManager(cfg.Checkpoint)
	if err != nil {
		slog.Error("failed to create checkpoint manager", "error", err)
		os.Exit(1)
	}

	runner := etl.NewRunner(cfg, catalog, client, convert.New(store), checkpoint)

	summary, err := runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("shutdown complete",
				"processed", summary.Processed, "failed", summary.Failed)
			return
		}
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
