// Package app wires configuration into the running services shared by the
// batch CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/runner"
	"github.com/use-agent/harvest/scraper"
	"github.com/use-agent/harvest/sink"
	"github.com/use-agent/harvest/webhook"
)

// App holds the long-lived services.
type App struct {
	Scraper  *scraper.Scraper
	Runner   *runner.Runner
	Notifier *webhook.Notifier // nil when no webhook URL is configured

	mongo *sink.Mongo
}

// New builds every service from cfg. The browser is launched here, so the
// caller must Close the App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// ── 1. Selectors ────────────────────────────────────────────────
	parser, err := extract.NewParser(Selectors(cfg.Selectors))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	// ── 2. Persistence ──────────────────────────────────────────────
	a := &App{}
	sinks := sink.Multi{sink.NewCSV(cfg.Output.Dir)}
	if cfg.Output.MongoURI != "" {
		m, err := sink.NewMongo(ctx, cfg.Output.MongoURI, cfg.Output.MongoDatabase, cfg.Output.MongoCollection)
		if err != nil {
			return nil, err
		}
		a.mongo = m
		sinks = append(sinks, m)
		slog.Info("mongo mirror enabled",
			"database", cfg.Output.MongoDatabase,
			"collection", cfg.Output.MongoCollection,
		)
	}

	// ── 3. Browser ──────────────────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Session, parser)
	if err != nil {
		a.closeMongo(ctx)
		return nil, err
	}
	a.Scraper = sc

	// ── 4. Runner ───────────────────────────────────────────────────
	opts := []runner.Option{
		runner.WithQueryTimeout(cfg.Run.QueryTimeout),
		runner.WithInterval(cfg.Run.QueryInterval),
	}
	if cfg.Webhook.URL != "" {
		a.Notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
		opts = append(opts, runner.WithNotifier(a.Notifier))
	}
	a.Runner = runner.New(Opener(sc), harvest.New(HarvestOptions(cfg.Harvest)), sinks, opts...)

	return a, nil
}

// Close releases the browser and the database connection.
func (a *App) Close(ctx context.Context) {
	if a.Scraper != nil {
		a.Scraper.Close()
	}
	a.closeMongo(ctx)
}

func (a *App) closeMongo(ctx context.Context) {
	if a.mongo == nil {
		return
	}
	if err := a.mongo.Close(ctx); err != nil {
		slog.Warn("mongo disconnect failed", "error", err)
	}
}

// Opener adapts the scraper's concrete Session to runner.Page.
func Opener(sc *scraper.Scraper) runner.Opener {
	return runner.OpenerFunc(func(ctx context.Context, q models.Query) (runner.Page, error) {
		sess, err := sc.Open(ctx, q)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}

// HarvestOptions maps the env-level pacing config onto the harvester.
func HarvestOptions(c config.HarvestConfig) harvest.Options {
	return harvest.Options{
		StepMin:        c.StepMin,
		StepMax:        c.StepMax,
		WarmupDelayMin: c.WarmupDelayMin,
		WarmupDelayMax: c.WarmupDelayMax,
		SettleDelay:    c.SettleDelay,
		StableRounds:   c.StableRounds,
		MaxRounds:      c.MaxRounds,
	}
}

// Selectors maps the env-level selector config onto the parser.
func Selectors(c config.SelectorConfig) extract.Selectors {
	return extract.Selectors{
		Container: c.Container,
		Item:      c.Item,
		Title:     c.Title,
		Address:   c.Address,
		Category:  c.Category,
		Website:   c.Website,
		Rating:    c.Rating,
		Reviews:   c.Reviews,
		Phone:     c.Phone,
	}
}
