package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/nao1215/roomscout/internal/model"
	"github.com/nao1215/roomscout/internal/session"
)

// ErrSessionClosed is returned by Page methods after Close.
var ErrSessionClosed = errors.New("browser session is closed")

// Options configure how the browser process is launched.
type Options struct {
	// Headless hides the browser window.
	Headless bool

	// ExecPath is the browser executable. Empty uses chromedp's lookup.
	ExecPath string

	// ProxyServer is passed to --proxy-server, e.g. "socks5://127.0.0.1:9050".
	ProxyServer string

	// Logger receives chromedp protocol logs at debug level.
	Logger *slog.Logger
}

// allocatorOptions builds the exec allocator flags for profile.
func allocatorOptions(profile model.Profile, opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("lang", profile.Locale),
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(profile.Viewport.Width, profile.Viewport.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	return allocOpts
}

// Session is a launched browser with one tab, presenting a Profile.
// Close must be called on every path; it is safe to call more than once.
type Session struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	profile     model.Profile
	logger      *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

var _ Page = (*Session)(nil)

// Launch starts a browser for profile and applies the identity to its tab:
// user agent and Accept-Language, locale, timezone and viewport
// emulation, navigator.webdriver masking, and a cookie and permission
// reset. The browser is killed when ctx ends or Close is called.
func Launch(ctx context.Context, profile model.Profile, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(profile, opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
	)

	s := &Session{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		profile:     profile,
		logger:      logger,
	}

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx, identityActions(profile)...); err != nil {
		_ = s.Close() //nolint:errcheck // launch already failed
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Info("browser launched",
		"headless", opts.Headless,
		"proxy", opts.ProxyServer,
		"locale", profile.Locale,
		"timezone", profile.Timezone,
		"viewport", fmt.Sprintf("%dx%d", profile.Viewport.Width, profile.Viewport.Height),
	)
	return s, nil
}

func identityActions(profile model.Profile) []chromedp.Action {
	icuLocale := strings.ReplaceAll(profile.Locale, "-", "_")
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		emulation.SetUserAgentOverride(profile.UserAgent).
			WithAcceptLanguage(session.AcceptLanguage(profile.Locale)),
		emulation.SetLocaleOverride().WithLocale(icuLocale),
		emulation.SetTimezoneOverride(profile.Timezone),
		chromedp.EmulateViewport(int64(profile.Viewport.Width), int64(profile.Viewport.Height)),
		network.ClearBrowserCookies(),
		cdpbrowser.ResetPermissions(),
	}
}

// Profile returns the identity this session presents.
func (s *Session) Profile() model.Profile {
	return s.profile
}

// Close closes the tab and kills the browser process.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("browser closed")
	})
	return nil
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation. Cancelling a derived context does not close the tab.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Report the caller's deadline rather than the derived one.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate implements Page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("navigate", "url", url)
	return s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

// WaitVisible implements Page.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Count implements Page.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := s.run(ctx, chromedp.Evaluate(countScript(selector), &n)); err != nil {
		return 0, err
	}
	return n, nil
}

// TextMatches implements Page.
func (s *Session) TextMatches(ctx context.Context, pattern string) (bool, error) {
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(textMatchesScript(pattern), &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// Click implements Page.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// ClickText implements Page.
func (s *Session) ClickText(ctx context.Context, scope, selector, pattern string) (bool, error) {
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(clickTextScript(scope, selector, pattern), &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// Type implements Page.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// PressEnter implements Page.
func (s *Session) PressEnter(ctx context.Context) error {
	return s.run(ctx, chromedp.KeyEvent(kb.Enter))
}

// ScrollBy implements Page.
func (s *Session) ScrollBy(ctx context.Context, fraction float64) error {
	var ignored bool
	return s.run(ctx, chromedp.Evaluate(scrollScript(fraction), &ignored))
}

// HTML implements Page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := s.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return markup, nil
}

// URL implements Page.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}
