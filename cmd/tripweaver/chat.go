package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripweaver/tripweaver/internal/config"
	"github.com/tripweaver/tripweaver/internal/dispatch"
	"github.com/tripweaver/tripweaver/internal/orchestrator"
	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/rank"
	"github.com/tripweaver/tripweaver/internal/session"
	"github.com/tripweaver/tripweaver/internal/telemetry"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Plan a trip interactively in the terminal",
		Long: `Chat runs the orchestrator in-process with an in-memory session,
reading messages from stdin. Type "reset" to start the trip over and
"exit" to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}
}

func runChat(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)

	dispatcher := dispatch.NewDispatcher(buildRegistry(cfg),
		dispatch.WithConcurrency(cfg.Dispatch.Concurrency),
		dispatch.WithTaskTimeout(cfg.Dispatch.TaskTimeout.Std()),
		dispatch.WithRetryWait(cfg.Dispatch.RetryWait.Std()),
		dispatch.WithLogger(logger),
	)

	ranker := rank.NewRanker(cfg.Scoring.Weights)
	ranker.SetMaxPackages(cfg.Scoring.MaxPackages)
	if cfg.Scoring.Filter != "" {
		if err := ranker.SetFilter(cfg.Scoring.Filter); err != nil {
			return fmt.Errorf("scoring filter: %w", err)
		}
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	extractor, fallback := buildExtractors(cfg, logger)
	if fallback != nil {
		opts = append(opts, orchestrator.WithFallbackExtractor(fallback))
	}

	orch := orchestrator.New(session.NewMemoryStore(), extractor,
		plan.NewPlanner(cfg.PlanRules()), dispatcher, ranker, opts...)

	ctx := cmd.Context()
	if correlationID != "" {
		ctx = telemetry.WithCorrelationID(ctx, correlationID)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Where would you like to go? (type \"exit\" to quit)")

	var sessionID string
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case line == "reset":
			if sessionID != "" {
				if err := orch.Reset(ctx, sessionID); err != nil {
					fmt.Fprintf(out, "reset failed: %v\n", err)
					continue
				}
			}
			fmt.Fprintln(out, "Starting over. Where would you like to go?")
			continue
		}

		resp, err := orch.ProcessTurn(ctx, orchestrator.Request{
			SessionID: sessionID,
			Message:   line,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Fprintln(out, resp.Message)
	}
	return scanner.Err()
}
