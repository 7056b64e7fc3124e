// Package pipeline runs one search as an ordered list of steps over a
// browser page.
//
// A run opens the search engine, submits the query, follows the first
// organic result, falls back to the marketplace search URL when the
// result did not lead to listings, dismisses the known popup, scrolls to
// trigger lazy loading, and extracts records. Each step completes before
// the next starts. Optional interactions record a model.Diagnostic and
// let the run continue; everything else ends the run with an error that
// is stored in the model.SearchRun.
//
// Verification pages are handled by a Guard that polls until the page
// clears or a bounded timeout expires.
//
// BatchProcessor runs several queries with a concurrency limit using
// errgroup; each query owns its browser.
package pipeline
