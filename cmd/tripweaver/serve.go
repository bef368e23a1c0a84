package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/tripweaver/tripweaver/internal/archive"
	"github.com/tripweaver/tripweaver/internal/config"
	"github.com/tripweaver/tripweaver/internal/dispatch"
	"github.com/tripweaver/tripweaver/internal/llm"
	"github.com/tripweaver/tripweaver/internal/nlu"
	"github.com/tripweaver/tripweaver/internal/orchestrator"
	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/rank"
	"github.com/tripweaver/tripweaver/internal/server"
	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/telemetry"
	"github.com/tripweaver/tripweaver/internal/travel"
	"github.com/tripweaver/tripweaver/internal/worker"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)
	metrics := telemetry.NewMetrics()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg)
	dispatcher := dispatch.NewDispatcher(registry,
		dispatch.WithConcurrency(cfg.Dispatch.Concurrency),
		dispatch.WithTaskTimeout(cfg.Dispatch.TaskTimeout.Std()),
		dispatch.WithRetryWait(cfg.Dispatch.RetryWait.Std()),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
	)

	ranker := rank.NewRanker(cfg.Scoring.Weights)
	ranker.SetMaxPackages(cfg.Scoring.MaxPackages)
	if cfg.Scoring.Filter != "" {
		if err := ranker.SetFilter(cfg.Scoring.Filter); err != nil {
			return fmt.Errorf("scoring filter: %w", err)
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics),
	}

	extractor, fallback := buildExtractors(cfg, logger)
	if fallback != nil {
		opts = append(opts, orchestrator.WithFallbackExtractor(fallback))
	}

	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewArchiver(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.Region)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, orchestrator.WithArchiver(archiver))
		logger.Info("transcript archiving enabled", "bucket", cfg.Archive.Bucket)
	}

	orch := orchestrator.New(store, extractor, plan.NewPlanner(cfg.PlanRules()),
		dispatcher, ranker, opts...)

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Session.SweepSchedule, func() {
		n, err := store.PurgeExpired(ctx, cfg.Session.Expiry.Std())
		if err != nil {
			logger.Error("session sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("purged expired sessions", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("sweep schedule %q: %w", cfg.Session.SweepSchedule, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if configFile != "" {
		go func() {
			err := config.Watch(ctx, configFile, logger, func(next *config.Config) {
				ranker.SetWeights(next.Scoring.Weights)
				ranker.SetMaxPackages(next.Scoring.MaxPackages)
				if err := ranker.SetFilter(next.Scoring.Filter); err != nil {
					logger.Error("reloaded filter rejected", "error", err)
				}
			})
			if err != nil {
				logger.Error("config watch stopped", "error", err)
			}
		}()
	}

	srv := server.NewServer(orch,
		server.WithAPIKey(cfg.Server.APIKey),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Store.Backend {
	case "memory", "":
		return session.NewMemoryStore(), nil
	case "file":
		return session.NewFileStore(cfg.Store.Path)
	case "postgres":
		return session.NewPostgresStore(ctx, cfg.Store.DSN)
	case "etcd":
		return session.NewEtcdStore(cfg.Store.Endpoints)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildExtractors returns the primary extractor plus an optional fallback.
// With a model configured, the LLM extracts and the rules catch its
// failures; with no model, the rules run alone.
func buildExtractors(cfg *config.Config, logger *slog.Logger) (nlu.Extractor, nlu.Extractor) {
	if cfg.NLU.Model == "" {
		return nlu.NewRulesExtractor(), nil
	}
	client, model := llm.NewClientForModel(cfg.NLU.Model)
	logger.Info("slot extraction model configured", "model", model)
	return nlu.NewLLMExtractor(client, model), nlu.NewRulesExtractor()
}

// buildRegistry wires configured workers; with no worker config at all it
// registers stubs for every domain so the server still answers.
func buildRegistry(cfg *config.Config) *worker.Registry {
	registry := worker.NewRegistry()

	if len(cfg.Workers) == 0 {
		for _, d := range []travel.Domain{travel.DomainFlights, travel.DomainHotels, travel.DomainExperiences} {
			registry.Register(d, worker.NewStubWorker(d))
		}
		return registry
	}

	for name, wc := range cfg.Workers {
		domain := travel.Domain(name)
		switch wc.Kind {
		case "process":
			registry.Register(domain, worker.NewProcessWorker(wc.Command, wc.Args...))
		case "http":
			opts := []worker.HTTPWorkerOption{}
			if wc.APIKey != "" {
				opts = append(opts, worker.WithHeader("X-API-Key", wc.APIKey))
			}
			registry.Register(domain, worker.NewHTTPWorker(wc.URL, opts...))
		case "stub":
			registry.Register(domain, worker.NewStubWorker(domain))
		}
	}
	return registry
}
