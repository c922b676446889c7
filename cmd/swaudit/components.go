package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/daimoniac/swaudit/internal/audit"
	"github.com/daimoniac/swaudit/internal/config"
	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/inventory"
	"github.com/daimoniac/swaudit/internal/matcher"
	"github.com/daimoniac/swaudit/internal/normalize"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/policy"
	"github.com/daimoniac/swaudit/internal/resolver"
	"github.com/daimoniac/swaudit/internal/session"
	"github.com/daimoniac/swaudit/internal/statestore"
	"github.com/daimoniac/swaudit/internal/worker"
)

// components are the collaborators shared by every subcommand
type components struct {
	cfg         *config.Config
	logger      *slog.Logger
	fs          afero.Fs
	opener      corpus.Opener
	cache       statestore.MatchCache
	normalizer  *normalize.Normalizer
	coordinator *worker.Coordinator
	resolver    *resolver.Resolver
	options     audit.Options
}

// loadConfig loads and validates configuration and builds the logger
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLoggerWithOptions(observability.LogOptions{
		Level: cfg.Observability.LogLevel,
		File:  cfg.Observability.LogFile,
	})
	return cfg, logger, nil
}

func newComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{
		cfg:    cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
	}

	if cfg.Corpus.SeedFile != "" {
		logger.Debug("loading corpus seed", "path", cfg.Corpus.SeedFile)
		store, err := corpus.LoadMemoryStore(c.fs, cfg.Corpus.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("serving corpus from seed file",
			"path", cfg.Corpus.SeedFile,
			"records", store.Len())
		c.opener = store
	} else {
		c.opener = corpus.NewMongoOpener(corpus.MongoConfig{
			URI:            cfg.Corpus.MongoURI,
			Database:       cfg.Corpus.Database,
			Collection:     cfg.Corpus.Collection,
			ConnectTimeout: cfg.Corpus.ConnectTimeout,
		}, logger)
	}

	logger.Debug("initializing match cache", "type", cfg.Cache.Type)
	var err error
	switch cfg.Cache.Type {
	case "sqlite":
		c.cache, err = statestore.NewSQLiteStore(cfg.Cache.SQLitePath)
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Corpus.ConnectTimeout)
		c.cache, err = statestore.NewMongoCache(connectCtx, cfg.Corpus.MongoURI, cfg.Corpus.Database, cfg.Cache.MongoCollection)
		cancel()
	case "memory":
		c.cache = statestore.NewMemoryCache()
	default:
		err = fmt.Errorf("unsupported match cache type: %s", cfg.Cache.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize match cache: %w", err)
	}

	filter, err := inventory.NewFilter(cfg.Ignore, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid ignore rules: %w", err)
	}

	engine, err := policy.NewEngine(logger, cfg.Policy)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	c.normalizer = normalize.New(cfg.Stopwords...)
	workers := cfg.WorkerSettings()
	c.coordinator = worker.NewCoordinator(c.opener, matcher.New(c.cache, c.normalizer, logger), workers, logger)
	c.resolver = resolver.New(c.opener, workers, logger)
	c.options = audit.Options{
		PageSize:    cfg.Report.PageSize,
		Filter:      filter,
		Policy:      engine,
		Tolerations: cfg.Tolerations,
	}

	return c, nil
}

func (c *components) newService(sessions session.Store) *audit.Service {
	return audit.NewService(sessions, c.coordinator, c.resolver, c.options, c.logger)
}

// pingCorpus opens a store, pings it and closes it again
func (c *components) pingCorpus(ctx context.Context) error {
	store, err := c.opener.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(ctx)
}

func (c *components) Close() {
	if c.cache == nil {
		return
	}
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("failed to close match cache", "error", err)
	}
}
