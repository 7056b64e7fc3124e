// Package browser drives a real Chromium instance for a search run.
//
// Pipeline steps depend only on the Page interface, which names the page
// operations a run needs in terms of CSS selectors and text patterns.
// Session implements Page on top of chromedp; tests use in-memory fakes.
package browser

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Page is one browser tab. Every method blocks until the operation is
// done or ctx ends; callers bound waits with context.WithTimeout.
type Page interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until an element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error

	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)

	// TextMatches reports whether the visible body text matches pattern,
	// a Go regular expression limited to the syntax shared with
	// JavaScript; a leading (?i) becomes the i flag.
	TextMatches(ctx context.Context, pattern string) (bool, error)

	// Click clicks the first visible element matching selector.
	Click(ctx context.Context, selector string) error

	// ClickText clicks the first element matching selector, inside an
	// element matching scope (the whole document when scope is empty),
	// whose text matches pattern. It reports whether one was clicked.
	ClickText(ctx context.Context, scope, selector, pattern string) (bool, error)

	// Type focuses the element matching selector and types text into it.
	Type(ctx context.Context, selector, text string) error

	// PressEnter sends the Enter key to the focused element.
	PressEnter(ctx context.Context) error

	// ScrollBy scrolls down by fraction of the viewport height.
	ScrollBy(ctx context.Context, fraction float64) error

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)
}

// jsRegExp splits a Go pattern into a JavaScript RegExp source and flags.
func jsRegExp(pattern string) (string, string) {
	if rest, ok := strings.CutPrefix(pattern, "(?i)"); ok {
		return rest, "i"
	}
	return pattern, ""
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func countScript(selector string) string {
	return "document.querySelectorAll(" + jsString(selector) + ").length"
}

func textMatchesScript(pattern string) string {
	src, flags := jsRegExp(pattern)
	return "(() => { const t = document.body ? document.body.innerText : '';" +
		" return new RegExp(" + jsString(src) + ", " + jsString(flags) + ").test(t); })()"
}

func clickTextScript(scope, selector, pattern string) string {
	src, flags := jsRegExp(pattern)
	return "(() => {" +
		" const scope = " + jsString(scope) + ";" +
		" const roots = scope ? Array.from(document.querySelectorAll(scope)) : [document];" +
		" const re = new RegExp(" + jsString(src) + ", " + jsString(flags) + ");" +
		" for (const root of roots) {" +
		"  for (const el of root.querySelectorAll(" + jsString(selector) + ")) {" +
		"   if (re.test((el.innerText || el.textContent || '').trim())) { el.click(); return true; }" +
		"  }" +
		" }" +
		" return false; })()"
}

func scrollScript(fraction float64) string {
	return "window.scrollBy(0, Math.round(window.innerHeight * " + strconv.FormatFloat(fraction, 'f', -1, 64) + ")); true"
}

// hideWebdriver runs before any page script in every new document.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`
