package pipeline

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// CleanQuery derives a location from a free-text query by dropping whole
// words equal to one of the noise tokens, compared case-insensitively and
// ignoring surrounding punctuation. "Airbnb in Berlin" with tokens
// airbnb and in gives "Berlin". If nothing is left, the trimmed query is
// returned.
func CleanQuery(query string, noise []string) string {
	fold := cases.Fold() // a Caser is stateful; never share one across goroutines
	drop := make(map[string]bool, len(noise))
	for _, n := range noise {
		drop[fold.String(n)] = true
	}

	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		bare := strings.TrimFunc(w, unicode.IsPunct)
		if drop[fold.String(bare)] {
			continue
		}
		kept = append(kept, w)
	}

	if len(kept) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.Join(kept, " ")
}

// FallbackURL fills the single %s in pattern with the path-escaped location.
func FallbackURL(pattern, location string) string {
	return fmt.Sprintf(pattern, url.PathEscape(location))
}
