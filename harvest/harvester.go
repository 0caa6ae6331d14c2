package harvest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/use-agent/harvest/models"
)

// Handle is the narrow port the Harvester drives. Implementations own all
// DOM access; the Harvester only sees heights, scroll commands and
// extracted records.
type Handle interface {
	// ScrollHeight returns the container's current scroll height in pixels.
	ScrollHeight(ctx context.Context) (int, error)

	// ScrollBy scrolls the container down by px pixels.
	ScrollBy(ctx context.Context, px int) error

	// ScrollToBottom scrolls the container to its current bottom.
	ScrollToBottom(ctx context.Context) error

	// ExtractVisibleItems returns the listings rendered right now.
	// present is false when no listing elements exist at all, which is
	// different from a rendered but empty list.
	ExtractVisibleItems(ctx context.Context) (items []models.RawRecord, present bool, err error)
}

// Phase is a state of the harvest state machine.
type Phase int

const (
	PhaseWarmingUp Phase = iota
	PhaseHarvesting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmingUp:
		return "warming_up"
	case PhaseHarvesting:
		return "harvesting"
	default:
		return "done"
	}
}

// StopReason records which guard ended the harvest.
type StopReason string

const (
	StopStagnation    StopReason = "stagnation"
	StopContainerGone StopReason = "container_gone"
	StopNoGrowth      StopReason = "no_growth"
	StopRoundLimit    StopReason = "round_limit"
	StopCanceled      StopReason = "canceled"
	StopFailed        StopReason = "failed"
)

// Options tunes pacing and termination.
type Options struct {
	// StepMin and StepMax bound the warm-up scroll step: [StepMin, StepMax) px.
	StepMin int
	StepMax int

	// WarmupDelayMin and WarmupDelayMax bound the wait after each
	// warm-up scroll: [min, max).
	WarmupDelayMin time.Duration
	WarmupDelayMax time.Duration

	// SettleDelay is the fixed wait after each forced scroll to bottom.
	SettleDelay time.Duration

	// StableRounds is how many consecutive unchanged height readings end
	// the harvesting phase. Values below 1 are treated as 1.
	StableRounds int

	// MaxRounds caps harvesting iterations. 0 means no cap.
	MaxRounds int
}

// DefaultOptions returns the pacing the results panel needs in practice.
func DefaultOptions() Options {
	return Options{
		StepMin:        100,
		StepMax:        200,
		WarmupDelayMin: 2000 * time.Millisecond,
		WarmupDelayMax: 2500 * time.Millisecond,
		SettleDelay:    1500 * time.Millisecond,
		StableRounds:   1,
	}
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises a Harvester.
type Option func(*Harvester)

// WithSleep replaces the context-aware timer wait.
func WithSleep(fn SleepFunc) Option {
	return func(h *Harvester) { h.sleep = fn }
}

// WithJitter replaces the random source. fn(n) must return a value in [0, n).
func WithJitter(fn func(n int64) int64) Option {
	return func(h *Harvester) { h.jitter = fn }
}

// WithLogger sets the logger used for progress lines.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// Harvester drives the warm-up / extract / scroll / terminate loop for
// one query against one handle. All per-harvest state lives inside Run,
// so a Harvester can be shared between goroutines.
type Harvester struct {
	opts   Options
	sleep  SleepFunc
	jitter func(n int64) int64
	logger *slog.Logger
}

// New creates a Harvester.
func New(opts Options, options ...Option) *Harvester {
	if opts.StableRounds < 1 {
		opts.StableRounds = 1
	}
	if opts.StepMax < opts.StepMin {
		opts.StepMax = opts.StepMin
	}
	if opts.WarmupDelayMax < opts.WarmupDelayMin {
		opts.WarmupDelayMax = opts.WarmupDelayMin
	}
	h := &Harvester{
		opts:   opts,
		sleep:  sleepContext,
		jitter: rand.Int64N,
		logger: slog.Default(),
	}
	for _, o := range options {
		o(h)
	}
	return h
}

// ScrollState is the height bookkeeping of one harvest.
type ScrollState struct {
	LastObservedHeight int
	StableRounds       int
}

// Report describes a finished (or interrupted) harvest.
type Report struct {
	Query   models.Query
	Records []models.NormalizedRecord

	// Grew is true when the container height changed during warm-up.
	Grew          bool
	WarmupScrolls int
	Rounds        int
	Extractions   int
	Stop          StopReason
}

// run is the mutable state of a single Run call.
type run struct {
	handle Handle
	query  models.Query
	state  ScrollState
	set    *ResultSet
	report *Report
	log    *slog.Logger
}

// Harvest runs the loop and returns only the records.
func (h *Harvester) Harvest(ctx context.Context, handle Handle, q models.Query) ([]models.NormalizedRecord, error) {
	rep, err := h.Run(ctx, handle, q)
	if rep == nil {
		return nil, err
	}
	return rep.Records, err
}

// Run executes the state machine WarmingUp → Harvesting → Done.
//
// The returned Report is non-nil whenever handle is non-nil, including on
// error: records gathered before a cancellation or a handle failure are
// kept in Report.Records.
func (h *Harvester) Run(ctx context.Context, handle Handle, q models.Query) (*Report, error) {
	if handle == nil {
		return nil, models.NewHarvestError(models.ErrCodeNoContainer, "no scrollable container for "+q.String(), nil)
	}

	r := &run{
		handle: handle,
		query:  q,
		set:    NewResultSet(),
		report: &Report{Query: q},
		log:    h.logger.With("location", q.Location, "term", q.Term),
	}

	baseline, err := handle.ScrollHeight(ctx)
	if err != nil {
		return h.finish(ctx, r, err)
	}
	r.state.LastObservedHeight = baseline

	phase := PhaseWarmingUp
	for phase != PhaseDone {
		if ctx.Err() != nil {
			return h.finish(ctx, r, ctx.Err())
		}

		var stepErr error
		switch phase {
		case PhaseWarmingUp:
			phase, stepErr = h.warmUpStep(ctx, r)
		case PhaseHarvesting:
			phase, stepErr = h.harvestStep(ctx, r)
		}
		if stepErr != nil {
			return h.finish(ctx, r, stepErr)
		}
	}

	return h.finish(ctx, r, nil)
}

// warmUpStep scrolls by a random step, waits, and compares heights.
func (h *Harvester) warmUpStep(ctx context.Context, r *run) (Phase, error) {
	if err := r.handle.ScrollBy(ctx, h.scrollStep()); err != nil {
		return PhaseDone, err
	}
	r.report.WarmupScrolls++

	if err := h.sleep(ctx, h.warmupDelay()); err != nil {
		return PhaseDone, err
	}

	height, err := r.handle.ScrollHeight(ctx)
	if err != nil {
		return PhaseDone, err
	}

	if !heightStagnated(r.state, height) {
		r.report.Grew = true
		r.state.LastObservedHeight = height
		return PhaseWarmingUp, nil
	}

	if r.report.Grew {
		r.log.Debug("warm-up finished, container grew",
			"height", height,
			"scrolls", r.report.WarmupScrolls,
		)
		r.state = ScrollState{}
		return PhaseHarvesting, nil
	}

	// Static container: one look at what is already rendered.
	r.log.Debug("container did not grow during warm-up", "height", height)
	items, present, err := r.handle.ExtractVisibleItems(ctx)
	r.report.Extractions++
	if err != nil {
		return PhaseDone, err
	}
	if present {
		r.set.Merge(NormalizeAll(items, r.query))
	}
	r.report.Stop = StopNoGrowth
	return PhaseDone, nil
}

// harvestStep is one extract → merge → scroll → settle → measure cycle.
func (h *Harvester) harvestStep(ctx context.Context, r *run) (Phase, error) {
	if h.opts.MaxRounds > 0 && r.report.Rounds >= h.opts.MaxRounds {
		r.log.Warn("harvest round limit reached", "rounds", r.report.Rounds)
		r.report.Stop = StopRoundLimit
		return PhaseDone, nil
	}

	items, present, err := r.handle.ExtractVisibleItems(ctx)
	r.report.Extractions++
	if err != nil {
		return PhaseDone, err
	}
	if containerGone(present) {
		r.report.Stop = StopContainerGone
		return PhaseDone, nil
	}

	r.set.Merge(NormalizeAll(items, r.query))
	r.log.Info("found listings", "count", r.set.Len(), "round", r.report.Rounds+1)

	if err := r.handle.ScrollToBottom(ctx); err != nil {
		return PhaseDone, err
	}
	if err := h.sleep(ctx, h.opts.SettleDelay); err != nil {
		return PhaseDone, err
	}

	height, err := r.handle.ScrollHeight(ctx)
	if err != nil {
		return PhaseDone, err
	}
	r.report.Rounds++

	if heightStagnated(r.state, height) {
		r.state.StableRounds++
		if r.state.StableRounds >= h.opts.StableRounds {
			r.report.Stop = StopStagnation
			return PhaseDone, nil
		}
	} else {
		r.state.StableRounds = 0
	}
	r.state.LastObservedHeight = height
	return PhaseHarvesting, nil
}

// finish fills the report and classifies the terminal error.
func (h *Harvester) finish(ctx context.Context, r *run, err error) (*Report, error) {
	r.report.Records = r.set.Records()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.report.Stop = StopCanceled
			r.log.Warn("harvest interrupted, keeping partial results",
				"records", len(r.report.Records),
				"error", ctxErr,
			)
			return r.report, canceledError(ctxErr)
		}
		r.report.Stop = StopFailed
		return r.report, err
	}

	if len(r.report.Records) == 0 {
		return r.report, models.NewHarvestError(models.ErrCodeEmptyResult, "no records extracted for "+r.query.String(), nil)
	}
	return r.report, nil
}

// heightStagnated is the end-of-results guard: no new content rendered
// since the previous reading.
func heightStagnated(st ScrollState, height int) bool {
	return height == st.LastObservedHeight
}

// containerGone is the guard for listing markup disappearing entirely.
func containerGone(present bool) bool {
	return !present
}

func (h *Harvester) scrollStep() int {
	span := h.opts.StepMax - h.opts.StepMin
	if span <= 0 {
		return h.opts.StepMin
	}
	return h.opts.StepMin + int(h.jitter(int64(span)))
}

func (h *Harvester) warmupDelay() time.Duration {
	span := h.opts.WarmupDelayMax - h.opts.WarmupDelayMin
	if span <= 0 {
		return h.opts.WarmupDelayMin
	}
	return h.opts.WarmupDelayMin + time.Duration(h.jitter(int64(span)))
}

func canceledError(err error) *models.HarvestError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewHarvestError(models.ErrCodeTimeout, "harvest deadline exceeded", err)
	}
	return models.NewHarvestError(models.ErrCodeCanceled, "harvest canceled", err)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
