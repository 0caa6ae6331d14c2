package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// acceptConsent clicks the cookie consent button if it shows up within
// wait, then pauses for settle. A missing button is not an error; only a
// cancelled parent context is.
func acceptConsent(ctx context.Context, page *rod.Page, selector string, wait, settle time.Duration) error {
	if selector == "" || wait <= 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	el, err := page.Context(waitCtx).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("no consent dialog", "selector", selector)
		return nil
	}

	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		slog.Warn("consent click failed", "error", err)
		return nil
	}
	slog.Debug("consent accepted")

	select {
	case <-time.After(settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
