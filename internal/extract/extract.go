// Package extract turns the HTML of a marketplace results page into
// listing records.
//
// Extraction is a pure function of the page markup and its URL, so it is
// tested against fixtures without a browser. Each field is read by an
// ordered list of strategies: structured attributes first, visible text
// and regular expressions as fallbacks.
package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/roomscout/internal/config"
	"github.com/nao1215/roomscout/internal/model"
)

// ErrInvalidRules is returned by New when the rules cannot build an Extractor.
var ErrInvalidRules = errors.New("invalid extraction rules")

// Extractor selects listing cards and reads their fields.
// It is safe for concurrent use.
type Extractor struct {
	cardSelector string
	linkSelector string
	identifier   *regexp.Regexp
	title        []Strategy
	description  []Strategy
	price        []Strategy
	rating       []Strategy
	sentinel     string
	maxRecords   int
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxRecords sets the record bound. Values below 1 are ignored.
func WithMaxRecords(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxRecords = n
		}
	}
}

// WithLogger sets the logger used for per-card debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTitleStrategies replaces the title strategies built from rules.
func WithTitleStrategies(s ...Strategy) Option {
	return func(e *Extractor) { e.title = s }
}

// New builds an Extractor from rules.
func New(rules config.ExtractRules, opts ...Option) (*Extractor, error) {
	if rules.CardSelector == "" || rules.LinkSelector == "" {
		return nil, fmt.Errorf("%w: card and link selectors are required", ErrInvalidRules)
	}
	idRe, err := compileRequired("identifierPattern", rules.IdentifierPattern)
	if err != nil {
		return nil, err
	}
	if idRe.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: identifierPattern needs a capture group", ErrInvalidRules)
	}
	priceRe, err := compileRequired("pricePattern", rules.PricePattern)
	if err != nil {
		return nil, err
	}
	ratingRe, err := compileRequired("ratingPattern", rules.RatingPattern)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		cardSelector: rules.CardSelector,
		linkSelector: rules.LinkSelector,
		identifier:   idRe,
		sentinel:     rules.Sentinel,
		maxRecords:   config.DefaultMaxRecords,
		logger:       slog.Default(),
	}
	if e.sentinel == "" {
		e.sentinel = "N/A"
	}

	e.title = []Strategy{Attr{Selector: `meta[itemprop="name"]`, Attribute: "content"}}
	for _, sel := range rules.TitleSelectors {
		e.title = append(e.title, Text{Selector: sel})
	}
	e.title = append(e.title, Text{Selector: "h1, h2, h3, h4, h5, h6"}, FirstLine{})

	e.description = []Strategy{Attr{Selector: `meta[itemprop="description"]`, Attribute: "content"}}
	for _, sel := range rules.DescriptionSelectors {
		e.description = append(e.description, Text{Selector: sel})
	}

	for _, sel := range rules.PriceSelectors {
		e.price = append(e.price, Pattern{Selector: sel, Regexp: priceRe})
	}
	e.price = append(e.price, Pattern{Regexp: priceRe})

	for _, sel := range rules.RatingSelectors {
		e.rating = append(e.rating,
			Pattern{Selector: sel, Attribute: "aria-label", Regexp: ratingRe},
			Pattern{Selector: sel, Regexp: ratingRe},
		)
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func compileRequired(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidRules, name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRules, name, err)
	}
	return re, nil
}

// MaxRecords returns the record bound.
func (e *Extractor) MaxRecords() int {
	return e.maxRecords
}

// ExtractHTML is Extract over a string.
func (e *Extractor) ExtractHTML(markup, pageURL string) ([]model.ListingRecord, error) {
	return e.Extract(strings.NewReader(markup), pageURL)
}

// Extract returns at most MaxRecords records from the page, in document
// order, with no repeated identifier. Relative links resolve against
// pageURL.
//
// A card is skipped, without using up the bound, when it has no link,
// its link is not an absolute http(s) URL, or no identifier can be parsed
// from it, or its identifier was already seen. Missing titles and
// descriptions get the sentinel; missing prices and ratings stay nil.
func (e *Extractor) Extract(r io.Reader, pageURL string) ([]model.ListingRecord, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	doc := goquery.NewDocumentFromNode(root)
	records := make([]model.ListingRecord, 0, e.maxRecords)
	seen := make(map[string]bool)

	doc.Find(e.cardSelector).EachWithBreak(func(i int, card *goquery.Selection) bool {
		link, id, ok := e.link(card, base)
		if !ok {
			e.logger.Debug("card skipped: no usable link", "card", i)
			return true
		}
		if seen[id] {
			e.logger.Debug("card skipped: duplicate identifier", "card", i, "identifier", id)
			return true
		}
		seen[id] = true

		records = append(records, e.record(card, id, link))
		return len(records) < e.maxRecords
	})

	return records, nil
}

// link finds the card's detail link and parses its identifier.
func (e *Extractor) link(card *goquery.Selection, base *url.URL) (string, string, bool) {
	anchor := card.Filter(e.linkSelector)
	if anchor.Length() == 0 {
		anchor = card.Find(e.linkSelector)
	}
	href, ok := anchor.First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	abs := base.ResolveReference(ref)
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return "", "", false
	}
	m := e.identifier.FindStringSubmatch(abs.Path)
	if len(m) < 2 || m[1] == "" {
		return "", "", false
	}
	canonical := url.URL{Scheme: abs.Scheme, Host: abs.Host, Path: abs.Path}
	return canonical.String(), m[1], true
}

func (e *Extractor) record(card *goquery.Selection, id, link string) model.ListingRecord {
	rec := model.ListingRecord{
		Identifier:  id,
		Title:       e.sentinel,
		Description: e.sentinel,
		Link:        link,
	}
	if v, name, ok := firstValue(card, e.title); ok {
		rec.Title = v
		e.logger.Debug("title found", "identifier", id, "strategy", name)
	}
	if v, _, ok := firstValue(card, e.description); ok {
		rec.Description = v
	}
	if v, _, ok := firstValue(card, e.price); ok {
		rec.Price = model.StringPtr(v)
	}
	if v, _, ok := firstValue(card, e.rating); ok {
		rec.Rating = model.StringPtr(v)
	}
	return rec
}
