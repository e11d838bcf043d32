package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"job-ingest/internal/config"
	"job-ingest/internal/database/migration"
	dbpostgres "job-ingest/internal/database/postgres"
	"job-ingest/internal/extraction"
	"job-ingest/internal/infrastructure/cache"
	"job-ingest/internal/infrastructure/fetcher"
	"job-ingest/internal/infrastructure/llm"
	"job-ingest/internal/pkg/jwt"
	"job-ingest/internal/ratelimit"
	"job-ingest/internal/repository"
	"job-ingest/internal/usecase/ingest"
	"job-ingest/internal/worker"
	"job-ingest/internal/ws"
)

// Container owns every long-lived dependency of the server process.
type Container struct {
	Config config.Config
	Logger *log.Logger

	Store    repository.JobStore
	Redis    *cache.Redis
	Governor *ratelimit.Governor
	JWT      jwt.Service

	Coordinator *extraction.Coordinator
	Pool        *worker.Pool
	Hub         *ws.Hub
	Ingest      *ingest.Service
	Sweeper     *ingest.Sweeper

	memoryWindows *ratelimit.MemoryStore
	closers       []func() error
	cancel        context.CancelFunc
}

func NewContainer(cfg config.Config) (*Container, error) {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
	c := &Container{Config: cfg, Logger: logger}

	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	c.Store = store

	c.Redis = cache.NewRedis(cache.Options{
		Enabled:  cfg.Redis.Enabled,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	c.closers = append(c.closers, c.Redis.Close)

	var windows ratelimit.WindowStore
	if c.Redis.Available() {
		windows = ratelimit.NewRedisStore(c.Redis, "")
	} else {
		c.memoryWindows = ratelimit.NewMemoryStore()
		windows = c.memoryWindows
	}
	c.Governor = ratelimit.NewGovernor(windows, ratelimit.Limits{
		Window:      cfg.RateLimit.Window,
		IPGeneral:   cfg.RateLimit.IPGeneral,
		IPAI:        cfg.RateLimit.IPAI,
		UserGeneral: cfg.RateLimit.UserGeneral,
		UserAI:      cfg.RateLimit.UserAI,
	}, logger)

	c.JWT = jwt.NewHMACService(cfg.JWT.Secret, 0)

	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		provider = llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, &http.Client{
			Timeout: cfg.Extraction.LLMTimeout + 5*time.Second,
		})
	} else {
		logger.Printf("[App] LLM_API_KEY not set, semantic extraction disabled")
	}
	c.Coordinator = extraction.NewDefaultCoordinator(provider, extraction.Config{
		MaxTextChars: cfg.Extraction.MaxTextChars,
		Semantic: extraction.SemanticConfig{
			MaxChars:    cfg.Extraction.SemanticChars,
			Timeout:     cfg.Extraction.LLMTimeout,
			MaxTokens:   cfg.Extraction.LLMMaxTokens,
			Temperature: &cfg.Extraction.LLMTemperature,
		},
	}, logger)

	c.Pool = worker.NewPool(cfg.Worker.Count, cfg.Worker.Queue, logger)
	c.Pool.SetRateLimit(cfg.Worker.StartsPerSecond)
	c.Hub = ws.NewHub(logger)

	enricher := ingest.NewEnricher(c.Store, c.newFetcher(), c.Coordinator, ws.NewNotifier(c.Hub), cfg.Fetch.Timeout, logger)
	c.Ingest = ingest.NewService(c.Store, c.Coordinator, enricher, c.Pool, logger)

	if cfg.Sweeper.Enabled {
		var locker ingest.Locker
		if c.Redis.Available() {
			locker = c.Redis
		}
		c.Sweeper = ingest.NewSweeper(c.Store, enricher, c.Pool, locker, ingest.SweeperConfig{
			Schedule:    cfg.Sweeper.Schedule,
			MaxAttempts: cfg.Sweeper.MaxAttempts,
			MinAge:      cfg.Sweeper.MinAge,
			BatchSize:   cfg.Sweeper.BatchSize,
		}, logger)
	}

	return c, nil
}

func (c *Container) openStore() (repository.JobStore, error) {
	cfg := c.Config.Database
	if cfg.Driver == "sqlite" {
		s, err := repository.NewSQLiteJobRepository(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, s.Close)
		c.Logger.Printf("[App] using sqlite store path=%s", cfg.SQLitePath)
		return s, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	c.closers = append(c.closers, db.Close)

	if cfg.AutoMigrate {
		r := migration.Runner{Dir: cfg.MigrationsDir, Logger: c.Logger}
		if err := r.Run(ctx, db.SQLDB()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return repository.NewPostgresJobRepository(db), nil
}

func (c *Container) newFetcher() fetcher.Fetcher {
	primary := fetcher.NewCollyFetcher(c.Config.Fetch.Timeout, c.Config.Fetch.MaxBodySize, c.Logger)
	if !c.Config.Fetch.Headless {
		return primary
	}
	return &fetcher.FallbackFetcher{
		Primary:   primary,
		Secondary: fetcher.NewHeadlessFetcher(c.Config.Fetch.Timeout, c.Logger),
		Logger:    c.Logger,
	}
}

// Start launches the background workers. They stop when Close is called.
func (c *Container) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.Pool.Start(ctx)
	go c.Hub.Run(ctx)
	if c.memoryWindows != nil {
		go c.memoryWindows.RunJanitor(ctx, 5*time.Minute, c.Governor.Limits().Window)
	}
	if c.Sweeper != nil {
		if err := c.Sweeper.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops intake first, then gives queued enrichment up to the drain
// timeout before cancelling in-flight work and releasing connections. Jobs
// left pending are picked up by the sweeper after a restart.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Sweeper != nil {
		c.Sweeper.Stop()
	}
	if c.Pool != nil {
		timeout := c.Config.Worker.DrainTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := c.Pool.Shutdown(ctx); err != nil {
			c.Logger.Printf("[App] enrichment drain timed out after %s, queued=%d", timeout, c.Pool.QueueLen())
		}
		cancel()
	}
	if c.cancel != nil {
		c.cancel()
	}

	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
