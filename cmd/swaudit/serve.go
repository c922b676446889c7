package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daimoniac/swaudit/internal/api"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/session"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the audit API with metrics and health endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("starting swaudit",
		"config_path", cfg.ConfigPath,
		"cache", cfg.Cache.Type,
		"sessions", cfg.Sessions.Type,
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()

	c, err := newComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Debug("initializing session store", "type", cfg.Sessions.Type)
	var sessions session.Store
	switch cfg.Sessions.Type {
	case "redis":
		sessions, err = session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
			Lifetime: cfg.Sessions.Lifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize redis session store: %w", err)
		}
	default:
		mem := session.NewMemoryStore(cfg.Sessions.Lifetime, logger)
		mem.StartSweeper(ctx, cfg.Sessions.SweepInterval)
		sessions = mem
	}
	defer sessions.Close()

	healthChecker := observability.NewHealthChecker(logger)
	healthChecker.RegisterComponent(observability.ComponentCorpus, c.pingCorpus)
	healthChecker.RegisterComponent(observability.ComponentCache, func(ctx context.Context) error {
		_, err := c.cache.CountMatches(ctx)
		return err
	})
	healthChecker.RegisterComponent(observability.ComponentSessions, sessions.Ping)
	go healthChecker.StartPeriodicChecks(ctx, cfg.Observability.HealthCheckInterval)

	observability.RegisterCacheCollector(c.cache, sessions, logger)

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)
	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()

	apiServer := api.NewAPIServer(&cfg.API, sessions, c.newService(sessions), c.cache, c.normalizer, healthChecker, logger)
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("API server: %w", err)
	}

	if !cfg.API.Enabled {
		<-ctx.Done()
	}

	logger.Info("swaudit stopped")
	return nil
}
