package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/roomscout/internal/browser"
	"github.com/nao1215/roomscout/internal/model"
)

// Guard detects verification pages and waits for a human to clear them.
type Guard struct {
	selectors []string
	pattern   string
	timeout   time.Duration
	interval  time.Duration
	notify    io.Writer
	logger    *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardNotify sets where the hand-off message is printed.
func WithGuardNotify(w io.Writer) GuardOption {
	return func(g *Guard) {
		if w != nil {
			g.notify = w
		}
	}
}

// WithGuardInterval sets the polling interval.
func WithGuardInterval(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithGuardLogger sets a custom logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard returns a Guard that treats a page as a verification page when
// any selector matches or the body text matches pattern. An empty pattern
// disables the text check.
func NewGuard(selectors []string, pattern string, timeout time.Duration, opts ...GuardOption) *Guard {
	g := &Guard{
		selectors: selectors,
		pattern:   pattern,
		timeout:   timeout,
		interval:  time.Second,
		notify:    io.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Detect reports whether the current page is a verification page.
// Evaluation errors, which happen while a navigation is in flight, count
// as not detected.
func (g *Guard) Detect(ctx context.Context, page browser.Page) bool {
	for _, sel := range g.selectors {
		n, err := page.Count(ctx, sel)
		if err != nil {
			g.logger.Debug("interstitial selector check failed", "selector", sel, "error", err)
			continue
		}
		if n > 0 {
			return true
		}
	}
	if g.pattern == "" {
		return false
	}
	ok, err := page.TextMatches(ctx, g.pattern)
	if err != nil {
		g.logger.Debug("interstitial text check failed", "error", err)
		return false
	}
	return ok
}

// Clear returns immediately when the page is not a verification page.
// Otherwise it prints a hand-off message and polls until the page clears,
// returning ErrChallengeUnresolved once the timeout expires. Every
// detection is recorded on run.
func (g *Guard) Clear(ctx context.Context, page browser.Page, run *model.SearchRun) error {
	if !g.Detect(ctx, page) {
		return nil
	}

	at, err := page.URL(ctx)
	if err != nil {
		at = "(unknown)"
	}
	g.logger.Warn("verification page detected", "url", at, "timeout", g.timeout)
	fmt.Fprintf(g.notify, "Verification page detected at %s.\nComplete it in the browser window within %s.\n", at, g.timeout)

	start := time.Now()
	err = poll(ctx, g.interval, g.timeout, func(ctx context.Context) (bool, error) {
		return !g.Detect(ctx, page), nil
	})

	event := model.InterstitialEvent{
		URL:        at,
		DetectedAt: start,
		Waited:     time.Since(start),
		Resolved:   err == nil,
	}
	run.Interstitials = append(run.Interstitials, event)

	switch {
	case err == nil:
		g.logger.Info("verification page cleared", "url", at, "waited", event.Waited)
		return nil
	case errors.Is(err, errPollTimeout):
		return fmt.Errorf("%w: still shown at %s after %s", ErrChallengeUnresolved, at, g.timeout)
	default:
		return err
	}
}
