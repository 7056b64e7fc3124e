package pipeline

import (
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/roomscout/internal/browser"
	"github.com/nao1215/roomscout/internal/config"
	"github.com/nao1215/roomscout/internal/extract"
)

// searchOptions holds the knobs of DefaultPipeline that are not rules.
type searchOptions struct {
	challengeTimeout   time.Duration
	navigationInterval time.Duration
	notify             io.Writer
	logger             *slog.Logger
}

// SearchOption configures DefaultPipeline.
type SearchOption func(*searchOptions)

// WithChallengeTimeout sets how long a verification page may stay up.
func WithChallengeTimeout(d time.Duration) SearchOption {
	return func(o *searchOptions) {
		o.challengeTimeout = d
	}
}

// WithNavigationInterval sets the minimum time between page loads.
func WithNavigationInterval(d time.Duration) SearchOption {
	return func(o *searchOptions) {
		o.navigationInterval = d
	}
}

// WithNotify sets where verification hand-off messages are printed.
func WithNotify(w io.Writer) SearchOption {
	return func(o *searchOptions) {
		o.notify = w
	}
}

// WithSearchLogger sets the logger shared by the pipeline and its steps.
func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(o *searchOptions) {
		o.logger = logger
	}
}

// DefaultPipeline creates the search pipeline for one browser tab:
//
//	open_search -> follow_result -> ensure_marketplace -> dismiss_popup -> prime -> extract
func DefaultPipeline(page browser.Page, rules *config.File, extractor *extract.Extractor, opts ...SearchOption) *Pipeline {
	o := &searchOptions{
		challengeTimeout:   config.DefaultChallengeTimeout,
		navigationInterval: config.DefaultNavigationInterval,
		notify:             io.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	guard := NewGuard(
		rules.Marketplace.ChallengeSelectors,
		rules.Marketplace.ChallengePattern,
		o.challengeTimeout,
		WithGuardNotify(o.notify),
		WithGuardInterval(rules.Timing.PollInterval),
		WithGuardLogger(o.logger),
	)
	nav := NewNavigator(page, guard, o.navigationInterval, o.logger)

	p := New(WithLogger(o.logger))
	p.AddSteps(
		NewOpenSearchStep(nav, rules.Search, rules.Timing),
		NewFollowResultStep(nav, rules.Search, rules.Timing),
		NewEnsureMarketplaceStep(nav, rules.Marketplace),
		NewDismissPopupStep(page, rules.Marketplace, rules.Timing),
		NewPrimeStep(page, rules.Timing),
		NewExtractStep(page, extractor, rules.Extract.CardSelector, rules.Timing),
	)
	return p
}
