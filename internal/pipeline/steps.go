package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/roomscout/internal/browser"
	"github.com/nao1215/roomscout/internal/config"
	"github.com/nao1215/roomscout/internal/extract"
	"github.com/nao1215/roomscout/internal/model"
)

// Step names, as recorded in SearchRun.PerformedSteps.
const (
	StepOpenSearch        = "open_search"
	StepFollowResult      = "follow_result"
	StepEnsureMarketplace = "ensure_marketplace"
	StepDismissPopup      = "dismiss_popup"
	StepPrime             = "prime"
	StepExtract           = "extract"
)

// Navigator loads pages no faster than its limiter allows and clears
// verification pages after every load.
type Navigator struct {
	page    browser.Page
	guard   *Guard
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewNavigator returns a Navigator spacing page loads by at least
// interval. A zero interval disables pacing.
func NewNavigator(page browser.Page, guard *Guard, interval time.Duration, logger *slog.Logger) *Navigator {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		page:    page,
		guard:   guard,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Pace blocks until the next page load is allowed.
func (n *Navigator) Pace(ctx context.Context) error {
	return n.limiter.Wait(ctx)
}

// Goto loads url and clears any verification page it shows.
func (n *Navigator) Goto(ctx context.Context, run *model.SearchRun, url string) error {
	if err := n.Pace(ctx); err != nil {
		return err
	}
	n.logger.Debug("loading page", "url", url)
	if err := n.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return n.guard.Clear(ctx, n.page, run)
}

// Clear clears a verification page on the current document.
func (n *Navigator) Clear(ctx context.Context, run *model.SearchRun) error {
	return n.guard.Clear(ctx, n.page, run)
}

// withTimeout runs fn under a child context bounded by d.
func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}

// recoverable reports whether err from a bounded wait is local to that
// wait. An expired or cancelled parent context is never recoverable.
func recoverable(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() == nil
}

// OpenSearchStep opens the search engine and submits the query.
// A missing consent button or search input is recorded and the run
// continues to the marketplace fallback.
type OpenSearchStep struct {
	nav          *Navigator
	rules        config.SearchRules
	inputTimeout time.Duration
	interval     time.Duration
	logger       *slog.Logger
}

// NewOpenSearchStep creates the open_search step.
func NewOpenSearchStep(nav *Navigator, rules config.SearchRules, timing config.TimingRules) *OpenSearchStep {
	return &OpenSearchStep{
		nav:          nav,
		rules:        rules,
		inputTimeout: timing.ResultsTimeout,
		interval:     timing.PollInterval,
		logger:       nav.logger,
	}
}

// Name returns the step name.
func (s *OpenSearchStep) Name() string { return StepOpenSearch }

// Do executes the step.
func (s *OpenSearchStep) Do(ctx context.Context, run *model.SearchRun) error {
	if err := s.nav.Goto(ctx, run, s.rules.EngineURL); err != nil {
		return err
	}
	page := s.nav.page

	if s.rules.ConsentPattern != "" {
		clicked, err := page.ClickText(ctx, "", "button, div[role='button']", s.rules.ConsentPattern)
		switch {
		case err != nil:
			run.AddDiagnostic(s.Name(), model.LevelInfo, "consent check failed: "+err.Error())
		case clicked:
			s.logger.Debug("consent accepted")
		default:
			s.logger.Debug("no consent prompt")
		}
	}

	var input string
	err := poll(ctx, s.interval, s.inputTimeout, func(ctx context.Context) (bool, error) {
		for _, sel := range s.rules.InputSelectors {
			if n, err := page.Count(ctx, sel); err == nil && n > 0 {
				input = sel
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning,
			fmt.Sprintf("%v: tried %s", ErrNoSearchInput, strings.Join(s.rules.InputSelectors, ", ")))
		return nil
	}

	if err := page.Type(ctx, input, run.Query); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning, "typing the query failed: "+err.Error())
		return nil
	}
	if err := page.PressEnter(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning, "submitting the query failed: "+err.Error())
		return nil
	}
	run.SearchSubmitted = true
	return nil
}

// FollowResultStep waits for organic results and follows the first one.
// Failure to find or follow a result is recorded and leaves LandingURL
// empty; only an unresolved verification page fails the run.
type FollowResultStep struct {
	nav      *Navigator
	rules    config.SearchRules
	timeout  time.Duration
	interval time.Duration
}

// NewFollowResultStep creates the follow_result step.
func NewFollowResultStep(nav *Navigator, rules config.SearchRules, timing config.TimingRules) *FollowResultStep {
	return &FollowResultStep{
		nav:      nav,
		rules:    rules,
		timeout:  timing.ResultsTimeout,
		interval: timing.PollInterval,
	}
}

// Name returns the step name.
func (s *FollowResultStep) Name() string { return StepFollowResult }

// Do executes the step.
func (s *FollowResultStep) Do(ctx context.Context, run *model.SearchRun) error {
	if !run.SearchSubmitted {
		return nil
	}
	page := s.nav.page

	if err := s.nav.Clear(ctx, run); err != nil {
		return err
	}

	err := withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return page.WaitVisible(ctx, s.rules.ResultsSelector)
	})
	if err != nil {
		if !recoverable(ctx, err) {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning,
			fmt.Sprintf("no organic results within %s", s.timeout))
		return nil
	}

	before, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read results URL: %w", err)
	}
	if err := s.nav.Pace(ctx); err != nil {
		return err
	}
	if err := page.Click(ctx, s.rules.FirstResultSelector); err != nil {
		if !recoverable(ctx, err) {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning, "clicking the first result failed: "+err.Error())
		return nil
	}

	var landing string
	err = poll(ctx, s.interval, s.timeout, func(ctx context.Context) (bool, error) {
		u, err := page.URL(ctx)
		if err != nil {
			return false, nil
		}
		landing = u
		return u != before, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelWarning,
			fmt.Sprintf("first result did not navigate within %s", s.timeout))
		return nil
	}

	if err := s.nav.Clear(ctx, run); err != nil {
		return err
	}
	run.LandingURL = landing
	return nil
}

// EnsureMarketplaceStep loads the marketplace search URL when the first
// result was not followed or the page it led to shows no listing links.
// It is the only fallback.
type EnsureMarketplaceStep struct {
	nav   *Navigator
	rules config.MarketplaceRules
}

// NewEnsureMarketplaceStep creates the ensure_marketplace step.
func NewEnsureMarketplaceStep(nav *Navigator, rules config.MarketplaceRules) *EnsureMarketplaceStep {
	return &EnsureMarketplaceStep{nav: nav, rules: rules}
}

// Name returns the step name.
func (s *EnsureMarketplaceStep) Name() string { return StepEnsureMarketplace }

// Do executes the step.
func (s *EnsureMarketplaceStep) Do(ctx context.Context, run *model.SearchRun) error {
	// Search results pages can link to listings too; only a followed
	// result counts as being on the marketplace.
	if run.LandingURL != "" {
		n, err := s.nav.page.Count(ctx, s.rules.MarkerSelector)
		if err != nil {
			s.nav.logger.Debug("marker check failed", "error", err)
		}
		if err == nil && n > 0 {
			return nil
		}
	}

	location := CleanQuery(run.Query, s.rules.NoiseTokens)
	target := FallbackURL(s.rules.FallbackURL, location)
	run.FallbackUsed = true
	run.AddDiagnostic(s.Name(), model.LevelInfo, fallbackReason(run)+"; loading "+target)

	return s.nav.Goto(ctx, run, target)
}

func fallbackReason(run *model.SearchRun) string {
	if run.LandingURL == "" {
		return "no search result was followed"
	}
	return "no listing links on " + run.LandingURL
}

// DismissPopupStep closes the marketplace's informational dialog if it
// appears. It never fails the run.
type DismissPopupStep struct {
	page    browser.Page
	rules   config.MarketplaceRules
	timeout time.Duration
	pause   time.Duration
}

// NewDismissPopupStep creates the dismiss_popup step.
func NewDismissPopupStep(page browser.Page, rules config.MarketplaceRules, timing config.TimingRules) *DismissPopupStep {
	return &DismissPopupStep{
		page:    page,
		rules:   rules,
		timeout: timing.PopupTimeout,
		pause:   timing.PopupPause,
	}
}

// Name returns the step name.
func (s *DismissPopupStep) Name() string { return StepDismissPopup }

// Do executes the step.
func (s *DismissPopupStep) Do(ctx context.Context, run *model.SearchRun) error {
	err := withTimeout(ctx, s.timeout, func(ctx context.Context) error {
		return s.page.WaitVisible(ctx, s.rules.PopupSelector)
	})
	if err != nil {
		if !recoverable(ctx, err) {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelInfo, fmt.Sprintf("no dialog within %s", s.timeout))
		return nil
	}

	clicked, err := s.page.ClickText(ctx, s.rules.PopupSelector, "button", s.rules.PopupButtonPattern)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		run.AddDiagnostic(s.Name(), model.LevelInfo, "dismissing the dialog failed: "+err.Error())
		return nil
	case !clicked:
		run.AddDiagnostic(s.Name(), model.LevelInfo, "dialog had no matching button")
		return nil
	}
	return sleep(ctx, s.pause)
}

// PrimeStep scrolls a fixed number of times so lazily loaded cards render.
type PrimeStep struct {
	page     browser.Page
	cycles   int
	fraction float64
	pause    time.Duration
}

// NewPrimeStep creates the prime step.
func NewPrimeStep(page browser.Page, timing config.TimingRules) *PrimeStep {
	return &PrimeStep{
		page:     page,
		cycles:   timing.ScrollCycles,
		fraction: timing.ScrollFraction,
		pause:    timing.ScrollPause,
	}
}

// Name returns the step name.
func (s *PrimeStep) Name() string { return StepPrime }

// Do executes the step.
func (s *PrimeStep) Do(ctx context.Context, _ *model.SearchRun) error {
	for i := range s.cycles {
		if err := s.page.ScrollBy(ctx, s.fraction); err != nil {
			return fmt.Errorf("scroll %d of %d failed: %w", i+1, s.cycles, err)
		}
		if err := sleep(ctx, s.pause); err != nil {
			return err
		}
	}
	return nil
}

// ExtractStep waits for listing cards and extracts records from the page.
type ExtractStep struct {
	page      browser.Page
	extractor *extract.Extractor
	marker    string
	timeout   time.Duration
	interval  time.Duration
}

// NewExtractStep creates the extract step. marker is the selector whose
// presence means cards have rendered, normally the card selector.
func NewExtractStep(page browser.Page, extractor *extract.Extractor, marker string, timing config.TimingRules) *ExtractStep {
	return &ExtractStep{
		page:      page,
		extractor: extractor,
		marker:    marker,
		timeout:   timing.ListingsTimeout,
		interval:  timing.PollInterval,
	}
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return StepExtract }

// Do executes the step.
func (s *ExtractStep) Do(ctx context.Context, run *model.SearchRun) error {
	err := poll(ctx, s.interval, s.timeout, func(ctx context.Context) (bool, error) {
		n, err := s.page.Count(ctx, s.marker)
		return err == nil && n > 0, nil
	})
	if errors.Is(err, errPollTimeout) {
		return fmt.Errorf("%w within %s", ErrNoListings, s.timeout)
	}
	if err != nil {
		return err
	}

	markup, err := s.page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	loc, err := s.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page URL: %w", err)
	}

	records, err := s.extractor.ExtractHTML(markup, loc)
	if err != nil {
		return err
	}
	run.FinalURL = loc
	run.Records = records
	return nil
}
