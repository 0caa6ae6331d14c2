package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/harvest/models"
	"github.com/ysmood/gson"
)

const (
	jsScrollHeight = `(sel) => {
		const el = document.querySelector(sel);
		return el ? el.scrollHeight : 0;
	}`
	jsScrollBy = `(sel, px) => {
		const el = document.querySelector(sel);
		if (el) el.scrollBy(0, px);
	}`
	jsScrollToBottom = `(sel) => {
		const el = document.querySelector(sel);
		if (el) el.scrollTo(0, el.scrollHeight);
	}`
)

// Session is one opened results page. It implements harvest.Handle and
// must be released with Close.
type Session struct {
	scraper   *Scraper
	page      *rod.Page
	router    *rod.HijackRouter
	container string
	released  bool

	// failed marks the page unhealthy for this use. Cancellations do
	// not count.
	failed bool
}

// Open borrows a page, prepares it and navigates to the query's results.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire page          – borrow a tab from the pool
//  2. Stealth injection     – before navigation, or it does not apply
//  3. Identity              – user agent, language, geolocation
//  4. Hijack mount          – block heavy resource types
//  5. Navigate              – bounded by NavigationTimeout
//  6. Consent               – best-effort click on the cookie dialog
//  7. Container wait        – the results panel must appear
//
// On any failure the page is returned to the pool before Open returns.
func (s *Scraper) Open(ctx context.Context, q models.Query) (*Session, error) {
	// ── 1. Acquire page from pool ─────────────────────────────────────
	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	s.activePages.Add(1)

	sess := &Session{
		scraper:   s,
		page:      page,
		container: s.parser.Selectors().Container,
	}

	if err := sess.prepare(ctx, q); err != nil {
		sess.fail(err)
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (sess *Session) prepare(ctx context.Context, q models.Query) error {
	cfg := sess.scraper.sessionCfg
	page := sess.page

	// ── 2. Stealth injection ──────────────────────────────────────────
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 3. Identity ───────────────────────────────────────────────────
	if len(cfg.UserAgents) > 0 {
		ua := cfg.UserAgents[rand.IntN(len(cfg.UserAgents))]
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: cfg.AcceptLanguage,
		}); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}
	if cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.AcceptLanguage}),
		}.Call(page)
	}
	lat, lng, acc := cfg.Latitude, cfg.Longitude, cfg.Accuracy
	if err := (proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lng,
		Accuracy:  &acc,
	}).Call(page); err != nil {
		slog.Warn("geolocation override failed", "error", err)
	}

	// ── 4. Mount hijack router ────────────────────────────────────────
	sess.router = setupHijack(page, cfg.BlockedResourceTypes)

	// ── 5. Navigate ───────────────────────────────────────────────────
	target := SearchURL(cfg.SearchBaseURL, q)
	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	defer cancel()
	nav := page.Context(navCtx)

	if err := nav.Navigate(target); err != nil {
		return categorizeError(err, "navigation to results page failed")
	}
	if err := nav.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	// ── 6. Consent dialog ─────────────────────────────────────────────
	if err := acceptConsent(ctx, page, cfg.ConsentSelector, cfg.ConsentWait, cfg.ConsentSettle); err != nil {
		return categorizeError(err, "consent handling interrupted")
	}

	// ── 7. Wait for the results panel ─────────────────────────────────
	waitCtx, waitCancel := context.WithTimeout(ctx, cfg.ContainerWait)
	defer waitCancel()
	if _, err := page.Context(waitCtx).Element(sess.container); err != nil {
		if ctx.Err() != nil {
			return categorizeError(ctx.Err(), "waiting for results panel")
		}
		return models.NewHarvestError(models.ErrCodeNoContainer, "results panel did not appear for "+q.String(), err)
	}

	slog.Debug("results page ready", "url", target)
	return nil
}

// ScrollHeight implements harvest.Handle.
func (sess *Session) ScrollHeight(ctx context.Context) (int, error) {
	res, err := sess.page.Context(ctx).Eval(jsScrollHeight, sess.container)
	if err != nil {
		return 0, sess.fail(categorizeError(err, "reading container height"))
	}
	return res.Value.Int(), nil
}

// ScrollBy implements harvest.Handle.
func (sess *Session) ScrollBy(ctx context.Context, px int) error {
	if _, err := sess.page.Context(ctx).Eval(jsScrollBy, sess.container, px); err != nil {
		return sess.fail(categorizeError(err, "scrolling container"))
	}
	return nil
}

// ScrollToBottom implements harvest.Handle.
func (sess *Session) ScrollToBottom(ctx context.Context) error {
	if _, err := sess.page.Context(ctx).Eval(jsScrollToBottom, sess.container); err != nil {
		return sess.fail(categorizeError(err, "scrolling container to bottom"))
	}
	return nil
}

// ExtractVisibleItems implements harvest.Handle by snapshotting the
// container's markup and parsing it outside the browser.
func (sess *Session) ExtractVisibleItems(ctx context.Context) ([]models.RawRecord, bool, error) {
	p := sess.page.Context(ctx)

	has, el, err := p.Has(sess.container)
	if err != nil {
		return nil, false, sess.fail(categorizeError(err, "locating results panel"))
	}
	if !has {
		return nil, false, nil
	}

	rawHTML, err := el.HTML()
	if err != nil {
		return nil, false, sess.fail(categorizeError(err, "reading results panel"))
	}

	items, present, err := sess.scraper.parser.Parse(rawHTML)
	if err != nil {
		return nil, false, models.NewHarvestError(models.ErrCodeInternal, "parsing results panel", err)
	}
	return items, present, nil
}

// fail marks the session unhealthy unless err is a cancellation, and
// returns err.
func (sess *Session) fail(err error) error {
	var he *models.HarvestError
	if errors.As(err, &he) && (he.Code == models.ErrCodeCanceled || he.Code == models.ErrCodeTimeout) {
		return err
	}
	sess.failed = true
	return err
}

// Close stops request interception, blanks the page and returns it to the
// pool. A page that failed too often, or served too long, is closed and
// its pool slot freed for a fresh one. Close uses the page without any
// request context so cleanup succeeds even after the harvest context
// expired. Calling Close twice is a no-op.
func (sess *Session) Close() {
	if sess.released {
		return
	}
	sess.released = true
	sc := sess.scraper
	defer sc.activePages.Add(-1)

	if sess.router != nil {
		_ = sess.router.Stop()
	}

	if sc.health.release(sess.page.TargetID, !sess.failed) {
		slog.Info("retiring unhealthy page", "target", sess.page.TargetID)
		_ = sess.page.Close()
		sc.pagePool.Put(nil)
		return
	}

	if err := sess.page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	sc.pagePool.Put(sess.page)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed HarvestErrors so the API
// layer can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.HarvestError {
	var he *models.HarvestError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeCanceled, msg, err)
	default:
		return models.NewHarvestError(models.ErrCodeNavigation, msg, err)
	}
}
