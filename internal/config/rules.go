package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// File represents the structure of the .roomscout rules file.
// Every key is optional; absent keys keep the value from DefaultRules.
type File struct {
	Search      SearchRules      `yaml:"search,omitempty"`
	Marketplace MarketplaceRules `yaml:"marketplace,omitempty"`
	Extract     ExtractRules     `yaml:"extract,omitempty"`
	Timing      TimingRules      `yaml:"timing,omitempty"`
	Rotation    RotationRules    `yaml:"rotation,omitempty"`
}

// SearchRules locate the search engine controls.
type SearchRules struct {
	// EngineURL is the search engine home page.
	EngineURL string `yaml:"engineURL,omitempty"`

	// InputSelectors are tried in order; the first present one receives the query.
	InputSelectors []string `yaml:"inputSelectors,omitempty"`

	// ConsentPattern matches the text of the cookie consent button.
	ConsentPattern string `yaml:"consentPattern,omitempty"`

	// ResultsSelector appears once organic results are rendered.
	ResultsSelector string `yaml:"resultsSelector,omitempty"`

	// FirstResultSelector is clicked to follow the first organic result.
	FirstResultSelector string `yaml:"firstResultSelector,omitempty"`
}

// MarketplaceRules describe the lodging marketplace pages.
type MarketplaceRules struct {
	// MarkerSelector is present on a marketplace results page.
	MarkerSelector string `yaml:"markerSelector,omitempty"`

	// FallbackURL is a search URL with one %s verb for the escaped location.
	FallbackURL string `yaml:"fallbackURL,omitempty"`

	// NoiseTokens are whole words stripped from the query to derive a location.
	NoiseTokens []string `yaml:"noiseTokens,omitempty"`

	PopupSelector      string `yaml:"popupSelector,omitempty"`
	PopupButtonPattern string `yaml:"popupButtonPattern,omitempty"`

	// ChallengeSelectors and ChallengePattern detect verification pages.
	ChallengeSelectors []string `yaml:"challengeSelectors,omitempty"`
	ChallengePattern   string   `yaml:"challengePattern,omitempty"`
}

// ExtractRules describe listing cards and their fields.
type ExtractRules struct {
	CardSelector      string `yaml:"cardSelector,omitempty"`
	LinkSelector      string `yaml:"linkSelector,omitempty"`
	IdentifierPattern string `yaml:"identifierPattern,omitempty"`

	TitleSelectors       []string `yaml:"titleSelectors,omitempty"`
	DescriptionSelectors []string `yaml:"descriptionSelectors,omitempty"`
	PriceSelectors       []string `yaml:"priceSelectors,omitempty"`
	PricePattern         string   `yaml:"pricePattern,omitempty"`
	RatingSelectors      []string `yaml:"ratingSelectors,omitempty"`
	RatingPattern        string   `yaml:"ratingPattern,omitempty"`

	// Sentinel is used for a missing title or description.
	Sentinel string `yaml:"sentinel,omitempty"`
}

// TimingRules are the bounded waits of a run.
type TimingRules struct {
	ResultsTimeout  time.Duration `yaml:"resultsTimeout,omitempty"`
	ListingsTimeout time.Duration `yaml:"listingsTimeout,omitempty"`
	PopupTimeout    time.Duration `yaml:"popupTimeout,omitempty"`
	PopupPause      time.Duration `yaml:"popupPause,omitempty"`
	PollInterval    time.Duration `yaml:"pollInterval,omitempty"`
	ScrollPause     time.Duration `yaml:"scrollPause,omitempty"`
	ScrollCycles    int           `yaml:"scrollCycles,omitempty"`
	ScrollFraction  float64       `yaml:"scrollFraction,omitempty"`
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RotationRules are the identity attributes drawn per run.
type RotationRules struct {
	UserAgents []string   `yaml:"userAgents,omitempty"`
	Viewports  []Viewport `yaml:"viewports,omitempty"`
	Locales    []string   `yaml:"locales,omitempty"`
	Timezones  []string   `yaml:"timezones,omitempty"`
}

// DefaultRules returns the built-in rules for Google and Airbnb.
func DefaultRules() File {
	return File{
		Search: SearchRules{
			EngineURL:           "https://www.google.com",
			InputSelectors:      []string{"textarea[name='q']", "input[name='q']"},
			ConsentPattern:      `(?i)^\s*(accept all|accept|i agree)\s*$`,
			ResultsSelector:     "div#search a h3",
			FirstResultSelector: "div#search a:has(h3)",
		},
		Marketplace: MarketplaceRules{
			MarkerSelector:     "a[href*='/rooms/']",
			FallbackURL:        "https://www.airbnb.com/s/%s/homes",
			NoiseTokens:        []string{"airbnb", "in"},
			PopupSelector:      `[role="dialog"]`,
			PopupButtonPattern: `(?i)got it`,
			ChallengeSelectors: []string{`iframe[src*="recaptcha"]`},
			ChallengePattern:   `(?i)unusual traffic|verify you are human|captcha`,
		},
		Extract: ExtractRules{
			CardSelector:      `[itemprop="itemListElement"]`,
			LinkSelector:      `a[href*="/rooms/"]`,
			IdentifierPattern: `/rooms/(?:plus/)?([0-9]+)`,
			TitleSelectors: []string{
				`[data-testid="listing-card-title"]`,
				`[data-testid="listing-card-name"]`,
			},
			DescriptionSelectors: []string{
				`[data-testid="listing-card-subtitle"]`,
				`[data-testid="listing-card-name"]`,
			},
			PriceSelectors: []string{
				`[data-testid="price-availability-row"]`,
			},
			PricePattern:    `[₹$€£]\s?[\d,]+(?:\.\d{1,2})?`,
			RatingSelectors: []string{`[aria-label*="rating"]`, `[aria-label*="Rating"]`},
			RatingPattern:   `\d+[.,]\d+`,
			Sentinel:        "N/A",
		},
		Timing: TimingRules{
			ResultsTimeout:  30 * time.Second,
			ListingsTimeout: 20 * time.Second,
			PopupTimeout:    7 * time.Second,
			PopupPause:      1500 * time.Millisecond,
			PollInterval:    time.Second,
			ScrollPause:     2500 * time.Millisecond,
			ScrollCycles:    8,
			ScrollFraction:  0.8,
		},
		Rotation: RotationRules{
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
			},
			Viewports: []Viewport{
				{Width: 1366, Height: 768},
				{Width: 1440, Height: 900},
				{Width: 1536, Height: 864},
			},
			Locales:   []string{"en-US", "en-IN", "en-GB"},
			Timezones: []string{"Asia/Kolkata", "Asia/Dubai", "Europe/London"},
		},
	}
}

// MergeRules overlays the non-zero values of override onto defaults.
// Lists replace rather than append.
func MergeRules(defaults, override File) File {
	result := defaults

	mergeString(&result.Search.EngineURL, override.Search.EngineURL)
	mergeList(&result.Search.InputSelectors, override.Search.InputSelectors)
	mergeString(&result.Search.ConsentPattern, override.Search.ConsentPattern)
	mergeString(&result.Search.ResultsSelector, override.Search.ResultsSelector)
	mergeString(&result.Search.FirstResultSelector, override.Search.FirstResultSelector)

	m := override.Marketplace
	mergeString(&result.Marketplace.MarkerSelector, m.MarkerSelector)
	mergeString(&result.Marketplace.FallbackURL, m.FallbackURL)
	mergeList(&result.Marketplace.NoiseTokens, m.NoiseTokens)
	mergeString(&result.Marketplace.PopupSelector, m.PopupSelector)
	mergeString(&result.Marketplace.PopupButtonPattern, m.PopupButtonPattern)
	mergeList(&result.Marketplace.ChallengeSelectors, m.ChallengeSelectors)
	mergeString(&result.Marketplace.ChallengePattern, m.ChallengePattern)

	e := override.Extract
	mergeString(&result.Extract.CardSelector, e.CardSelector)
	mergeString(&result.Extract.LinkSelector, e.LinkSelector)
	mergeString(&result.Extract.IdentifierPattern, e.IdentifierPattern)
	mergeList(&result.Extract.TitleSelectors, e.TitleSelectors)
	mergeList(&result.Extract.DescriptionSelectors, e.DescriptionSelectors)
	mergeList(&result.Extract.PriceSelectors, e.PriceSelectors)
	mergeString(&result.Extract.PricePattern, e.PricePattern)
	mergeList(&result.Extract.RatingSelectors, e.RatingSelectors)
	mergeString(&result.Extract.RatingPattern, e.RatingPattern)
	mergeString(&result.Extract.Sentinel, e.Sentinel)

	t := override.Timing
	mergeDuration(&result.Timing.ResultsTimeout, t.ResultsTimeout)
	mergeDuration(&result.Timing.ListingsTimeout, t.ListingsTimeout)
	mergeDuration(&result.Timing.PopupTimeout, t.PopupTimeout)
	mergeDuration(&result.Timing.PopupPause, t.PopupPause)
	mergeDuration(&result.Timing.PollInterval, t.PollInterval)
	mergeDuration(&result.Timing.ScrollPause, t.ScrollPause)
	if t.ScrollCycles != 0 {
		result.Timing.ScrollCycles = t.ScrollCycles
	}
	if t.ScrollFraction != 0 {
		result.Timing.ScrollFraction = t.ScrollFraction
	}

	r := override.Rotation
	mergeList(&result.Rotation.UserAgents, r.UserAgents)
	if len(r.Viewports) > 0 {
		result.Rotation.Viewports = r.Viewports
	}
	mergeList(&result.Rotation.Locales, r.Locales)
	mergeList(&result.Rotation.Timezones, r.Timezones)

	return result
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks that the rules can drive a run: required selectors
// are present and every pattern compiles. The rotation table is
// validated by the session package.
func (f *File) Validate() error {
	required := map[string]string{
		"search.resultsSelector":     f.Search.ResultsSelector,
		"search.firstResultSelector": f.Search.FirstResultSelector,
		"marketplace.markerSelector": f.Marketplace.MarkerSelector,
		"extract.cardSelector":       f.Extract.CardSelector,
		"extract.linkSelector":       f.Extract.LinkSelector,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s", ErrInvalidSelector, key)
		}
	}
	if len(f.Search.InputSelectors) == 0 {
		return fmt.Errorf("%w: search.inputSelectors", ErrInvalidSelector)
	}

	patterns := map[string]string{
		"search.consentPattern":          f.Search.ConsentPattern,
		"marketplace.popupButtonPattern": f.Marketplace.PopupButtonPattern,
		"marketplace.challengePattern":   f.Marketplace.ChallengePattern,
		"extract.identifierPattern":      f.Extract.IdentifierPattern,
		"extract.pricePattern":           f.Extract.PricePattern,
		"extract.ratingPattern":          f.Extract.RatingPattern,
	}
	for key, p := range patterns {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPattern, key, err)
		}
	}
	if f.Extract.IdentifierPattern == "" {
		return fmt.Errorf("%w: extract.identifierPattern is empty", ErrInvalidPattern)
	}

	if strings.Count(f.Marketplace.FallbackURL, "%s") != 1 {
		return ErrInvalidFallbackURL
	}

	if f.Timing.ScrollCycles < 0 {
		return ErrInvalidScrollCycles
	}

	return nil
}
