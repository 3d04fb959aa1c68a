package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"scrapemonitor/packages/admin"
	"scrapemonitor/packages/cache"
	"scrapemonitor/packages/config"
	"scrapemonitor/packages/db"
	"scrapemonitor/packages/fetcher"
	"scrapemonitor/packages/logging"
	"scrapemonitor/packages/toggle"
	"scrapemonitor/packages/worker"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Warn("Could not load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("FATAL: Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(logging.Config{File: cfg.LogFile, Level: cfg.LogLevel})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting Scrape Monitor ---")

	storage, err := db.New(ctx, cfg.DatabaseURL, db.Config{CatalogQuery: cfg.CatalogQuery})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	var catalog worker.TargetSource = storage
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("Redis unavailable, reading the catalog directly", "error", err)
		} else {
			defer rdb.Close()
			catalog = cache.New(storage, rdb, cache.Config{Key: cfg.CatalogCacheKey, TTL: cfg.CatalogCacheTTL})
		}
	}

	tg := toggle.New(logger)
	if cfg.EnabledOnStart {
		tg.SetEnabledBy(true, toggle.SourceStartup)
	}

	// Both consumers must see a nil interface, not a nil *fetcher.Client.
	var (
		loopFetcher  worker.Fetcher
		adminFetcher admin.Fetcher
	)
	if cfg.ProxyConfigured() {
		client, err := fetcher.New(cfg.FetcherConfig())
		if err != nil {
			slog.Error("Failed to build proxy client", "error", err)
			os.Exit(1)
		}
		loopFetcher = client
		adminFetcher = client
	}

	runner := worker.New(worker.Config{
		ProxyConfigured: cfg.ProxyConfigured(),
		BaseDelayMs:     cfg.BaseDelayMs,
		JitterMs:        cfg.JitterMs,
		BlockThreshold:  cfg.BlockThreshold,
		IdleInterval:    cfg.IdleInterval,
		ErrorBackoff:    cfg.ErrorBackoff,
	}, catalog, loopFetcher, tg, worker.WithLogger(logger))

	server := admin.NewServer(tg, adminFetcher, admin.ServerOptions{Addr: cfg.AdminAddr})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Start(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Scrape monitor stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown signal received. Exiting...")
}
