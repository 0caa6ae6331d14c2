// Command harvest-server exposes harvesting over HTTP.
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

	"github.com/joho/godotenv"

	"github.com/use-agent/harvest/api"
	"github.com/use-agent/harvest/api/handler"
	"github.com/use-agent/harvest/app"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	app.InitLogger(cfg.Log, os.Stdout)
	slog.Info("harvest-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// baseCtx outlives requests and bounds background runs.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	// ── 3. Launch browser and wire services ─────────────────────────
	a, err := app.New(baseCtx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	// ── 4. Cache and run store ──────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, time.Hour, baseCtx.Done())
	runs := handler.NewRunStore()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runs.Sweep(time.Hour)
			case <-baseCtx.Done():
				return
			}
		}
	}()

	// ── 5. Setup router ─────────────────────────────────────────────
	deps := api.Deps{
		Pool:   a.Scraper,
		Runner: a.Runner,
		Cache:  cc,
		Runs:   runs,
	}
	if a.Notifier != nil {
		deps.Notifier = a.Notifier
	}
	router := api.NewRouter(baseCtx, cfg, deps, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Background runs stop before their next query; partial records of
	// the current one are still persisted.
	cancelBase()
	runs.Wait()

	slog.Info("harvest-server stopped")
}
