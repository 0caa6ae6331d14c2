// Package runner drives harvests over a batch of queries: it opens a page
// per query, runs the harvester, persists whatever was collected and
// reports the outcome. One failing query never aborts the batch.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sink"
	"github.com/use-agent/harvest/webhook"
)

// persistTimeout bounds saving partial results after the query context
// has already expired.
const persistTimeout = 30 * time.Second

// Page is an opened results page.
type Page interface {
	harvest.Handle
	Close()
}

// Opener provides a ready Page for a query.
type Opener interface {
	Open(ctx context.Context, q models.Query) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, q models.Query) (Page, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, q models.Query) (Page, error) {
	return f(ctx, q)
}

// Notifier receives per-query events.
type Notifier interface {
	Notify(event *webhook.Event) <-chan struct{}
}

// Result is the outcome of one query.
type Result struct {
	Query    models.Query
	Records  []models.NormalizedRecord
	Dataset  string
	Stop     harvest.StopReason
	Duration time.Duration
	Err      error
}

// Outcome converts r to its API form.
func (r *Result) Outcome() models.QueryOutcome {
	out := models.QueryOutcome{
		Query:      r.Query,
		Records:    len(r.Records),
		Dataset:    r.Dataset,
		StopReason: string(r.Stop),
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = ErrorDetail(r.Err)
	}
	return out
}

// Summary aggregates a batch.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Records   int
	Results   []*Result
}

// Option customises a Runner.
type Option func(*Runner)

// WithQueryTimeout bounds each query from page open to the end of the harvest.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Runner) { r.queryTimeout = d }
}

// WithInterval enforces a minimum gap between query starts.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithNotifier sends harvest.completed / harvest.failed events.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner is safe for concurrent use as long as its Opener is.
type Runner struct {
	opener       Opener
	harvester    *harvest.Harvester
	sink         sink.Sink
	limiter      *rate.Limiter
	queryTimeout time.Duration
	notifier     Notifier
	logger       *slog.Logger
}

// New creates a Runner. s may be nil to skip persistence.
func New(opener Opener, h *harvest.Harvester, s sink.Sink, opts ...Option) *Runner {
	r := &Runner{
		opener:    opener,
		harvester: h,
		sink:      s,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Plan crosses locations with terms, location-major.
func Plan(locations, terms []string) []models.Query {
	queries := make([]models.Query, 0, len(locations)*len(terms))
	for _, loc := range locations {
		for _, term := range terms {
			queries = append(queries, models.Query{Location: loc, Term: term})
		}
	}
	return queries
}

// RunOne harvests a single query. Records gathered before a timeout or a
// page failure are still persisted and returned alongside the error.
func (r *Runner) RunOne(ctx context.Context, q models.Query) *Result {
	start := time.Now()
	log := r.logger.With("location", q.Location, "term", q.Term)
	res := &Result{Query: q}

	defer func() {
		res.Duration = time.Since(start)
		r.report(log, res)
	}()

	// ── 1. Pacing ─────────────────────────────────────────────────────
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Stop = harvest.StopCanceled
			res.Err = err
			return res
		}
	}

	// ── 2. Per-query deadline ─────────────────────────────────────────
	qctx := ctx
	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	// ── 3. Open results page ──────────────────────────────────────────
	page, err := r.opener.Open(qctx, q)
	if err != nil {
		res.Stop = harvest.StopFailed
		res.Err = err
		return res
	}

	// ── 4. Harvest ────────────────────────────────────────────────────
	rep, herr := r.harvester.Run(qctx, page, q)
	page.Close()
	if rep != nil {
		res.Records = rep.Records
		res.Stop = rep.Stop
	}
	res.Err = herr

	// ── 5. Persist, even a partial set ────────────────────────────────
	if len(res.Records) > 0 && r.sink != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		dataset, serr := r.sink.Save(pctx, q, res.Records)
		cancel()
		res.Dataset = dataset
		if serr != nil {
			res.Err = errors.Join(res.Err, serr)
		}
	}
	return res
}

// RunAll harvests queries one after another. onResult, if non-nil, is
// called after each query. Cancelling ctx stops the batch before the next
// query starts; queries not started are not part of the summary.
func (r *Runner) RunAll(ctx context.Context, queries []models.Query, onResult func(*Result)) *Summary {
	sum := &Summary{Total: len(queries)}
	for i, q := range queries {
		if ctx.Err() != nil {
			r.logger.Warn("batch interrupted",
				"done", i,
				"remaining", len(queries)-i,
				"error", ctx.Err(),
			)
			break
		}

		res := r.RunOne(ctx, q)
		sum.Results = append(sum.Results, res)
		sum.Records += len(res.Records)
		if res.Err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
		if onResult != nil {
			onResult(res)
		}
	}

	r.logger.Info("batch finished",
		"total", sum.Total,
		"completed", sum.Completed,
		"failed", sum.Failed,
		"records", sum.Records,
	)
	return sum
}

func (r *Runner) report(log *slog.Logger, res *Result) {
	if res.Err != nil {
		log.Error("query failed",
			"records", len(res.Records),
			"stop", res.Stop,
			"duration", res.Duration,
			"error", res.Err,
		)
	} else {
		log.Info("query finished",
			"records", len(res.Records),
			"dataset", res.Dataset,
			"stop", res.Stop,
			"duration", res.Duration,
		)
	}

	if r.notifier == nil {
		return
	}
	typ := webhook.EventHarvestCompleted
	if res.Err != nil {
		typ = webhook.EventHarvestFailed
	}
	r.notifier.Notify(webhook.NewEvent(typ, "", res.Outcome()))
}

// ErrorDetail maps any error to its API form. Untyped errors become
// INTERNAL_ERROR.
func ErrorDetail(err error) *models.ErrorDetail {
	var he *models.HarvestError
	if errors.As(err, &he) {
		return he.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
