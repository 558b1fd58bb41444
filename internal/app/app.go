// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/api"
	"github.com/JakeFAU/websearch/internal/clock/system"
	"github.com/JakeFAU/websearch/internal/config"
	"github.com/JakeFAU/websearch/internal/crawler"
	collyfetcher "github.com/JakeFAU/websearch/internal/fetcher/colly"
	"github.com/JakeFAU/websearch/internal/id/uuid"
	"github.com/JakeFAU/websearch/internal/indexer"
	"github.com/JakeFAU/websearch/internal/logging"
	"github.com/JakeFAU/websearch/internal/metrics"
	"github.com/JakeFAU/websearch/internal/policy/ratelimit"
	"github.com/JakeFAU/websearch/internal/politeness"
	"github.com/JakeFAU/websearch/internal/search"
	"github.com/JakeFAU/websearch/internal/storage/memory"
	"github.com/JakeFAU/websearch/internal/storage/postgres"
	"github.com/JakeFAU/websearch/internal/storage/sqlite"
	"github.com/JakeFAU/websearch/internal/store"
	"github.com/JakeFAU/websearch/internal/text"
)

// App holds the shared, long-lived services. It is built once per command and
// closed when the command finishes.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   *system.Clock
	store   store.Store
	crawler *crawler.Engine
	indexer *indexer.Indexer
	search  *search.Engine
	ops     *http.Server
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the wall clock.
func (a *App) Clock() *system.Clock { return a.clock }

// Store returns the frontier and index store.
func (a *App) Store() store.Store { return a.store }

// Crawler returns the crawl engine.
func (a *App) Crawler() *crawler.Engine { return a.crawler }

// Indexer returns the indexer.
func (a *App) Indexer() *indexer.Indexer { return a.indexer }

// Search returns the retrieval engine.
func (a *App) Search() *search.Engine { return a.search }

// New wires every service from cfg. It fails fast when the store cannot be opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	logger.Info("initializing application services", zap.String("storage", cfg.Storage.Provider))

	st, err := OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, st, logger)
}

// NewWithStore wires every service around an already opened store.
func NewWithStore(cfg config.Config, st store.Store, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	metrics.Init()

	domainDelays, err := politeness.ParseDomainDelays(cfg.Politeness.DomainDelays)
	if err != nil {
		return nil, fmt.Errorf("politeness.domain_delays: %w", err)
	}

	clock := system.New()
	robots := politeness.NewRobots(politeness.RobotsConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Politeness.RobotsTimeout,
	}, logger.Named("robots"))

	fetch := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Crawler.RequestTimeout,
		MaxBodySize: cfg.Crawler.MaxBodyBytes,
	},
		collyfetcher.WithLimiter(ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Crawler.MaxRPSPerDomain})),
		collyfetcher.WithLogger(logger.Named("fetcher")),
	)

	delayOpts := []politeness.DelayOption{politeness.WithDomainDelays(domainDelays)}
	if cfg.Politeness.HonorCrawlDelay {
		delayOpts = append(delayOpts, politeness.WithFloor(robots.CrawlDelay))
	}
	crawlDelay := politeness.NewDelayPolicy(
		politeness.DelayRange{Min: cfg.Crawler.MinDelay, Max: cfg.Crawler.MaxDelay}, clock, delayOpts...)
	indexDelay := politeness.NewDelayPolicy(
		politeness.DelayRange{Min: cfg.Indexer.MinDelay, Max: cfg.Indexer.MaxDelay}, clock,
		politeness.WithDomainDelays(domainDelays))

	analyzer := text.NewAnalyzer(nil)
	extractor := text.NewExtractor(fetch, cfg.Indexer.SnippetLength, logger.Named("extractor"))

	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		store:   st,
		crawler: crawler.NewEngine(fetch, robots, crawlDelay, st, clock, uuid.New(), logger.Named("crawler")),
		indexer: indexer.New(extractor, analyzer, st, indexDelay, clock, logger.Named("indexer"),
			indexer.WithRobots(robots)),
		search:  search.NewEngine(st, analyzer, logger.Named("search")),
	}
	if cfg.Metrics.Addr != "" {
		a.serveOps(cfg.Metrics.Addr)
	}
	logger.Info("application services initialized")
	return a, nil
}

// OpenStore opens the backend named by cfg.Provider.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (store.Store, error) {
	logger = logging.OrNop(logger)
	switch cfg.Provider {
	case config.ProviderSQLite:
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLite.Path))
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return st, nil
	case config.ProviderPostgres:
		logger.Info("connecting to postgres")
		st, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return st, nil
	case config.ProviderMemory:
		logger.Info("using in-memory store; nothing survives the process")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

// OpsHandler returns the health, readiness and metrics routes.
func (a *App) OpsHandler() http.Handler {
	ready := func(ctx context.Context) error {
		_, err := a.store.ListDiscovered(ctx, store.DiscoveredFilter{Limit: 1})
		return err
	}
	return api.NewServer(ready, a.logger.Named("api")).Handler()
}

func (a *App) serveOps(addr string) {
	a.ops = &http.Server{
		Addr:              addr,
		Handler:           a.OpsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("ops server started", zap.String("addr", addr))
		if err := a.ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Close shuts down the services held by the App.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.ops != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.ops.Shutdown(ctx); err != nil {
			a.logger.Warn("ops server shutdown error", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing store", zap.Error(err))
	}
}
