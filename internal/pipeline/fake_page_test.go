package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/nao1215/roomscout/internal/browser"
	"github.com/nao1215/roomscout/internal/config"
)

// fakeDoc is what fakePage shows at one URL.
type fakeDoc struct {
	counts    map[string]int
	text      string
	html      string
	clickable map[string]bool // ClickText result keyed by scope
}

// fakePage is a scripted browser.Page. Documents are keyed by URL; clicks
// and Enter move between them.
type fakePage struct {
	mu sync.Mutex

	url         string
	docs        map[string]*fakeDoc
	links       map[string]string // Click selector -> destination URL
	submitTo    string            // destination of PressEnter
	navigateErr error
	scrollErr   error

	// countHook overrides Count when it reports ok.
	countHook func(url, selector string) (int, bool)

	navigated []string
	clicked   []string
	typed     string
	scrolls   int
}

var _ browser.Page = (*fakePage)(nil)

func newFakePage() *fakePage {
	return &fakePage{
		docs:  make(map[string]*fakeDoc),
		links: make(map[string]string),
	}
}

func (f *fakePage) doc() *fakeDoc {
	if d, ok := f.docs[f.url]; ok {
		return d
	}
	return &fakeDoc{}
}

func (f *fakePage) count(selector string) int {
	if f.countHook != nil {
		if n, ok := f.countHook(f.url, selector); ok {
			return n
		}
	}
	return f.doc().counts[selector]
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.navigated = append(f.navigated, url)
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.url = url
	return nil
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	f.mu.Lock()
	n := f.count(selector)
	f.mu.Unlock()
	if n > 0 {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePage) Count(ctx context.Context, selector string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return f.count(selector), nil
}

func (f *fakePage) TextMatches(_ context.Context, pattern string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(f.doc().text), nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count(selector) == 0 {
		return fmt.Errorf("no node matches %s", selector)
	}
	f.clicked = append(f.clicked, selector)
	if dest, ok := f.links[selector]; ok {
		f.url = dest
	}
	return nil
}

func (f *fakePage) ClickText(_ context.Context, scope, selector, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.doc().clickable[scope] {
		return false, nil
	}
	f.clicked = append(f.clicked, scope+" "+selector)
	return true, nil
}

func (f *fakePage) Type(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count(selector) == 0 {
		return fmt.Errorf("no node matches %s", selector)
	}
	f.typed = text
	return nil
}

func (f *fakePage) PressEnter(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitTo == "" {
		return errors.New("nothing focused")
	}
	f.url = f.submitTo
	return nil
}

func (f *fakePage) ScrollBy(_ context.Context, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scrollErr != nil {
		return f.scrollErr
	}
	f.scrolls++
	return nil
}

func (f *fakePage) HTML(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc().html, nil
}

func (f *fakePage) URL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

// fastRules returns the default rules with every wait shortened for tests.
func fastRules() *config.File {
	rules := config.DefaultRules()
	rules.Timing = config.TimingRules{
		ResultsTimeout:  50 * time.Millisecond,
		ListingsTimeout: 50 * time.Millisecond,
		PopupTimeout:    20 * time.Millisecond,
		PopupPause:      time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		ScrollPause:     time.Millisecond,
		ScrollCycles:    3,
		ScrollFraction:  0.8,
	}
	return &rules
}

const (
	searchURL   = "https://www.google.com"
	resultsURL  = "https://www.google.com/search?q=airbnb+in+goa"
	landingURL  = "https://www.airbnb.co.in/goa/stays"
	fallbackURL = "https://www.airbnb.com/s/goa/homes"
)

const listingsHTML = `<html><body><main>
<div itemprop="itemListElement"><meta itemprop="name" content="Beach hut">
<a href="/rooms/111?check_in=2024-01-01"></a>
<div data-testid="price-availability-row"><span>₹4,200</span> night</div>
<span aria-label="4.9 out of 5 average rating">4.9 (12)</span></div>
<div itemprop="itemListElement"><meta itemprop="name" content="Villa">
<a href="/rooms/222"></a></div>
</main></body></html>`

// happyPage scripts a run that submits the query, follows the first
// result to a marketplace page and finds two listings.
func happyPage(rules *config.File) *fakePage {
	f := newFakePage()
	f.docs[searchURL] = &fakeDoc{
		counts:    map[string]int{"textarea[name='q']": 1},
		clickable: map[string]bool{"": true},
	}
	f.submitTo = resultsURL
	f.docs[resultsURL] = &fakeDoc{
		counts: map[string]int{
			rules.Search.ResultsSelector:     3,
			rules.Search.FirstResultSelector: 3,
		},
	}
	f.links[rules.Search.FirstResultSelector] = landingURL
	f.docs[landingURL] = &fakeDoc{
		counts: map[string]int{
			rules.Marketplace.MarkerSelector: 2,
			rules.Marketplace.PopupSelector:  1,
			rules.Extract.CardSelector:       2,
		},
		clickable: map[string]bool{rules.Marketplace.PopupSelector: true},
		html:      listingsHTML,
	}
	return f
}
