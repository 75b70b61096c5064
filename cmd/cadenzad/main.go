package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calev/cadenza/config"
	"github.com/calev/cadenza/internal/engine"
	"github.com/calev/cadenza/internal/library"
	"github.com/calev/cadenza/internal/playback"
	"github.com/calev/cadenza/internal/redis"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "cadenzad",
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		logger.Print("")
		logger.Print("Required environment variables:")
		logger.Print("  CATALOG_BASE_URL   - Streaming catalog API base URL")
		logger.Print("  CATALOG_API_KEY    - Catalog API key")
		logger.Print("")
		logger.Print("Optional:")
		logger.Print("  LOG_LEVEL          - debug, info, warn, error (default: info)")
		logger.Print("  RESOLVE_TIMEOUT    - Resolver timeout in seconds (default: 15)")
		logger.Print("  SUGGESTION_LIMIT   - Max suggested tracks per expansion (default: 20)")
		logger.Print("  EXPAND_RATE        - Queue inserts per second during expansion (default: 8)")
		logger.Print("  RESOLVE_CACHE_TTL  - Resolve cache TTL in seconds (default: 300)")
		logger.Print("  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE")
		logger.Print("  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB")
		os.Exit(1)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	catalog := playback.NewCatalogClient(cfg.CatalogBaseURL, cfg.CatalogAPIKey, logger)
	catalog.HTTPClient.Timeout = time.Duration(cfg.ResolveTimeoutSeconds) * time.Second
	catalog.SuggestionLimit = cfg.SuggestionLimit

	if cfg.RedisHost != "" {
		rcfg := cfg.GetRedisConfig()
		client, err := redis.Init(redis.Config{
			Host:     rcfg.Host,
			Port:     rcfg.Port,
			Password: rcfg.Password,
			DB:       rcfg.DB,
		})
		if err != nil {
			logger.Warn("redis unavailable, resolve caching disabled", "err", err)
		} else {
			ttl := time.Duration(cfg.ResolveCacheTTLSeconds) * time.Second
			catalog.WithCache(playback.NewResolveCache(client, ttl, logger))
			defer redis.Close()
		}
	}

	session := playback.NewSessionTracker()
	registry := playback.NewCancellationRegistry()
	eng := engine.New()

	populator := playback.NewPopulator(eng, catalog, catalog, session, cfg.ExpandRatePerSecond, logger)
	orchestrator := playback.NewOrchestrator(eng, catalog, populator, session, registry, logger)

	if cfg.DBHost != "" {
		dbcfg := cfg.GetDBConfig()
		err := library.Initialize(&library.Config{
			Host:     dbcfg.Host,
			Port:     dbcfg.Port,
			User:     dbcfg.User,
			Password: dbcfg.Password,
			DBName:   dbcfg.Name,
			SSLMode:  dbcfg.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn("download library unavailable, offline playback disabled", "err", err)
		} else {
			orchestrator.WithLibrary(library.NewDownloadStore())
			defer library.Close()
		}
	}

	logger.Info("playback core ready", "catalog", cfg.CatalogBaseURL)

	// Track ids on the command line are played as a playlist; handy for
	// smoke-testing a catalog deployment.
	if len(os.Args) > 1 {
		refs := make([]playback.TrackRef, 0, len(os.Args)-1)
		for _, id := range os.Args[1:] {
			refs = append(refs, playback.TrackRef{ID: id})
		}

		ctx := context.Background()
		if err := orchestrator.PlayPlaylist(ctx, refs); err != nil {
			logger.Error("playback failed", "err", err)
			os.Exit(1)
		}

		if token := registry.Current(); token != nil {
			<-token.Settled()
		}

		for i, track := range eng.Queue() {
			marker := " "
			if i == eng.ActiveIndex() {
				marker = "*"
			}
			logger.Info("queue", "pos", marker, "index", i, "track", track.ID, "title", track.Title)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
}
