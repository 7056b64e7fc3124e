package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy produces one field value from a card. Extractors try strategies
// in order and keep the first value found.
type Strategy interface {
	// Name identifies the strategy in debug logs.
	Name() string
	// Apply returns the value and whether one was found.
	Apply(card *goquery.Selection) (string, bool)
}

// Attr reads an attribute of the first matching descendant that has a
// non-blank value, e.g. meta[itemprop="name"] content.
type Attr struct {
	Selector  string
	Attribute string
}

// Name implements Strategy.
func (s Attr) Name() string { return "attr(" + s.Selector + "@" + s.Attribute + ")" }

// Apply implements Strategy.
func (s Attr) Apply(card *goquery.Selection) (string, bool) {
	var out string
	matches(card, s.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := sel.Attr(s.Attribute); ok {
			if v = collapse(v); v != "" {
				out = v
				return false
			}
		}
		return true
	})
	return out, out != ""
}

// Text reads the visible text of the first matching descendant with any.
type Text struct {
	Selector string
}

// Name implements Strategy.
func (s Text) Name() string { return "text(" + s.Selector + ")" }

// Apply implements Strategy.
func (s Text) Apply(card *goquery.Selection) (string, bool) {
	var out string
	matches(card, s.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v := textOf(sel); v != "" {
			out = v
			return false
		}
		return true
	})
	return out, out != ""
}

// Pattern returns the first regular expression match in the matching
// descendants. It searches Attribute when set, visible text otherwise.
// An empty Selector searches the card itself.
type Pattern struct {
	Selector  string
	Attribute string
	Regexp    *regexp.Regexp
}

// Name implements Strategy.
func (s Pattern) Name() string {
	target := s.Selector
	if target == "" {
		target = "card"
	}
	if s.Attribute != "" {
		target += "@" + s.Attribute
	}
	return "pattern(" + target + " ~ " + s.Regexp.String() + ")"
}

// Apply implements Strategy.
func (s Pattern) Apply(card *goquery.Selection) (string, bool) {
	scope := card
	if s.Selector != "" {
		scope = matches(card, s.Selector)
	}
	var out string
	scope.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var haystack string
		if s.Attribute != "" {
			haystack, _ = sel.Attr(s.Attribute)
		} else {
			haystack = textOf(sel)
		}
		if m := s.Regexp.FindString(haystack); m != "" {
			out = collapse(m)
			return false
		}
		return true
	})
	return out, out != ""
}

// FirstLine returns the first non-blank text run of the card, which is the
// title on most marketplace card layouts.
type FirstLine struct{}

// Name implements Strategy.
func (FirstLine) Name() string { return "first-line" }

// Apply implements Strategy.
func (FirstLine) Apply(card *goquery.Selection) (string, bool) {
	for _, n := range card.Nodes {
		if line := firstText(n); line != "" {
			return line, true
		}
	}
	return "", false
}

// matches returns the card itself and its descendants that match selector.
func matches(card *goquery.Selection, selector string) *goquery.Selection {
	return card.Filter(selector).AddSelection(card.Find(selector))
}

// firstValue runs strategies in order.
func firstValue(card *goquery.Selection, strategies []Strategy) (string, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Apply(card); ok {
			return v, s.Name(), true
		}
	}
	return "", "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
