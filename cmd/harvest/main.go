// Command harvest runs the batch: every configured location crossed with
// every term, one query at a time, each written to its own CSV dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/harvest/app"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()

	queriesFile := flag.String("queries", "", "YAML file with locations and terms (overrides HARVEST_QUERIES_FILE)")
	outDir := flag.String("out", "", "dataset directory (overrides HARVEST_OUTPUT_DIR)")
	location := flag.String("location", "", "harvest a single location instead of the configured list")
	term := flag.String("term", "", "harvest a single term instead of the configured list")
	flag.Parse()

	if *queriesFile != "" {
		os.Setenv("HARVEST_QUERIES_FILE", *queriesFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if s := strings.TrimSpace(*location); s != "" {
		cfg.Run.Locations = []string{s}
	}
	if s := strings.TrimSpace(*term); s != "" {
		cfg.Run.Terms = []string{s}
	}

	// ── 2. Initialise structured logging ────────────────────────────
	app.InitLogger(cfg.Log, os.Stdout)

	queries := runner.Plan(cfg.Run.Locations, cfg.Run.Terms)
	slog.Info("harvest batch starting",
		"locations", len(cfg.Run.Locations),
		"terms", len(cfg.Run.Terms),
		"queries", len(queries),
		"output", cfg.Output.Dir,
	)

	// ── 3. Stop between queries on SIGINT / SIGTERM ─────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Launch browser and wire services ─────────────────────────
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		return 1
	}
	defer a.Close(context.Background())

	// ── 5. Run ──────────────────────────────────────────────────────
	start := time.Now()
	sum := a.Runner.RunAll(ctx, queries, nil)

	slog.Info("harvest batch done",
		"completed", sum.Completed,
		"failed", sum.Failed,
		"records", sum.Records,
		"elapsed", time.Since(start).Round(time.Second).String(),
	)
	if sum.Completed == 0 && sum.Total > 0 {
		return 1
	}
	return 0
}
