package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/price-comparison-scraper/internal/api"
	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/cache"
	"github.com/maltedev/price-comparison-scraper/internal/comparison"
	"github.com/maltedev/price-comparison-scraper/internal/config"
	"github.com/maltedev/price-comparison-scraper/internal/database"
	"github.com/maltedev/price-comparison-scraper/internal/detector"
	"github.com/maltedev/price-comparison-scraper/internal/registry"
	"github.com/maltedev/price-comparison-scraper/internal/scraper"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection, only when a component reads from Postgres
	var db *database.DB
	if cfg.UsesPostgres() {
		db, err = database.New(ctx, cfg.DatabaseConfig())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	}

	reg, err := newRegistry(cfg, db)
	if err != nil {
		logger.Error("failed to initialize registry", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := newCacheStore(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var comparisonCache *cache.Cache
	if store != nil {
		comparisonCache = cache.New(store, logger)

		if deleter, ok := store.(cache.ExpiredDeleter); ok {
			sweeper := cache.NewSweeper(deleter, cfg.Cache.SweepInterval, logger)
			go func() {
				if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("cache sweeper stopped with error", "error", err)
				}
			}()
		}
	}

	families := scraper.DefaultSiteFamilies()
	if cfg.Scraper.SiteFamiliesFile != "" {
		families, err = scraper.LoadSiteFamilies(cfg.Scraper.SiteFamiliesFile)
		if err != nil {
			logger.Error("failed to load site families", "error", err)
			os.Exit(1)
		}
	}

	launch := browser.NewLauncher(cfg.BrowserOptions(), logger)
	crawler := scraper.NewCrawler(
		cfg.CrawlSettings(),
		families,
		browser.NewChallengeDetector(families.ChallengeTitles...),
		logger,
	)
	orchestrator := scraper.NewOrchestrator(reg, launch, crawler, logger)

	service := comparison.NewService(reg, orchestrator, comparisonCache, comparison.Options{
		CacheTTL:          cfg.Cache.TTL,
		MaxConcurrentRuns: int64(cfg.Scraper.MaxConcurrentRuns),
	}, logger)
	selectorDetector := detector.New(launch, cfg.Scraper.DetectorSettleWait, cfg.Browser.Timeout, logger)

	handlers := api.NewHandlers(service, selectorDetector, logger)

	// Setup Chi router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers.Routes(r)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", server.Addr,
		"registry", cfg.Registry.Source,
		"cache", cfg.Cache.Backend,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newRegistry(cfg *config.Config, db *database.DB) (registry.Registry, error) {
	if cfg.Registry.Source == config.RegistrySourceFile {
		return registry.LoadFile(cfg.Registry.File)
	}
	return database.NewCompetitorRepository(db), nil
}

// newCacheStore returns the configured store and a cleanup func. A nil store
// disables caching.
func newCacheStore(ctx context.Context, cfg *config.Config, db *database.DB, logger *slog.Logger) (cache.Store, func(), error) {
	noop := func() {}

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		// An unreachable Redis degrades to cache misses rather than blocking startup.
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, continuing with cache misses", "addr", cfg.Redis.Addr, "error", err)
		}
		return cache.NewRedisStore(client), func() { client.Close() }, nil

	case config.CacheBackendMemcache:
		client := memcache.New(cfg.Memcache.Servers...)
		client.Timeout = 500 * time.Millisecond
		return cache.NewMemcacheStore(client), noop, nil

	case config.CacheBackendPostgres:
		return database.NewCacheStore(db), noop, nil

	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), noop, nil
	}

	return nil, noop, nil
}
