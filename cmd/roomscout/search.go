package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/browser"
	"github.com/nao1215/roomscout/internal/config"
	"github.com/nao1215/roomscout/internal/database"
	"github.com/nao1215/roomscout/internal/egress"
	"github.com/nao1215/roomscout/internal/extract"
	"github.com/nao1215/roomscout/internal/log"
	"github.com/nao1215/roomscout/internal/model"
	"github.com/nao1215/roomscout/internal/pipeline"
	"github.com/nao1215/roomscout/internal/report"
	"github.com/nao1215/roomscout/internal/session"
)

// searchPrompt is printed when no query is given as arguments.
const searchPrompt = "What would you like to search? "

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search for listings and save them as JSON",
		Long: `Search opens a browser, runs the query on the search engine, follows the
first organic result to the marketplace and saves the first listings.

Each argument is one query. With no arguments the query is read from
standard input. If the search result does not lead to the marketplace,
roomscout opens the marketplace search page for the location named in
the query instead.

When a verification page appears, complete it in the browser window;
roomscout waits up to --challenge-timeout for it to clear.

Examples:
  # Search once and write listings.json
  roomscout search "airbnb in goa"

  # Ask for the query interactively
  roomscout search

  # Keep six listings and print a Markdown table
  roomscout search -n 6 --markdown "airbnb in lisbon"

  # Route the browser through a SOCKS5 proxy
  roomscout search --proxy 127.0.0.1:1080 "airbnb in goa"

  # Route the browser through an embedded Tor daemon
  roomscout search --tor "airbnb in goa"

  # Run two queries, two browsers at a time
  roomscout search -b 2 "airbnb in goa" "airbnb in kochi"`,
		Args: cobra.ArbitraryArgs,
		RunE: runSearchCmd,
	}

	cmd.Flags().IntP("max", "n", config.DefaultMaxRecords,
		"Maximum number of listings to keep per query")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"JSON output file (overwritten; parent directories are created)")
	cmd.Flags().Bool("no-file", false,
		"Do not write the JSON output file")
	cmd.Flags().BoolP("json", "j", false,
		"Print listings as JSON (default)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the run as Markdown")
	cmd.Flags().Bool("text", false,
		"Print a human-readable summary")
	cmd.Flags().BoolP("quiet", "q", false,
		"Suppress progress messages")

	// Browser flags
	cmd.Flags().Bool("headless", false,
		"Run the browser without a window (verification pages cannot be completed)")
	cmd.Flags().String("chrome", "",
		"Browser executable path (or $"+config.EnvChromePath+")")
	cmd.Flags().Int64("seed", 0,
		"Seed for the user agent, viewport, locale and timezone draw (0 = random)")

	// Egress flags
	cmd.Flags().StringP("proxy", "x", "",
		"Route the browser through a SOCKS5 proxy at host:port (or $"+config.EnvProxy+")")
	cmd.Flags().Bool("tor", false,
		"Route the browser through an embedded Tor daemon")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Timing flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for one whole search")
	cmd.Flags().Duration("challenge-timeout", config.DefaultChallengeTimeout,
		"How long to wait for a verification page to be completed")
	cmd.Flags().Duration("interval", config.DefaultNavigationInterval,
		"Minimum time between page loads")

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of queries searched concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Rules file path (default: .roomscout in current or home directory)")

	// Store flags
	cmd.Flags().Bool("no-db", false,
		"Do not store the run")
	addStoreFlags(cmd)

	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if len(cfg.Queries) == 0 {
		query, err := readQuery(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if query != "" {
			cfg.Queries = []string{query}
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	s, err := newSearcher(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return s.run(ctx)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// readQuery prompts on out and reads one line from in.
func readQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, searchPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// buildConfig creates a Config from defaults, the environment, the rules
// file and cobra command flags, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ApplyEnv()

	var err error

	cfg.Verbose = getVerboseFlag(cmd)

	cfg.MaxRecords, err = cmd.Flags().GetInt("max")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.NoFile, err = cmd.Flags().GetBool("no-file")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.TextReport, err = cmd.Flags().GetBool("text")
	if err != nil {
		return nil, err
	}

	cfg.Quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}

	cfg.Headless, err = cmd.Flags().GetBool("headless")
	if err != nil {
		return nil, err
	}

	chromePath, err := cmd.Flags().GetString("chrome")
	if err != nil {
		return nil, err
	}
	if chromePath != "" {
		cfg.ChromePath = chromePath
	}

	cfg.Seed, err = cmd.Flags().GetInt64("seed")
	if err != nil {
		return nil, err
	}

	proxyAddr, err := cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	if proxyAddr != "" {
		cfg.ProxyAddress = proxyAddr
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}
	if cfg.UseTor && !cmd.Flags().Changed("proxy") {
		// --tor wins over a proxy from the environment.
		cfg.ProxyAddress = ""
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.ChallengeTimeout, err = cmd.Flags().GetDuration("challenge-timeout")
	if err != nil {
		return nil, err
	}

	cfg.NavigationInterval, err = cmd.Flags().GetDuration("interval")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if err := applyStoreFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit --config must exist; otherwise a missing file means defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.Rules, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	for _, arg := range args {
		cfg.Queries = append(cfg.Queries, strings.TrimSpace(arg))
	}

	return cfg, nil
}

// pageSession is a browser tab that must be closed.
type pageSession interface {
	browser.Page
	Close() error
}

// launchFunc starts a browser presenting profile.
type launchFunc func(ctx context.Context, profile model.Profile, opts browser.Options) (pageSession, error)

func launchBrowser(ctx context.Context, profile model.Profile, opts browser.Options) (pageSession, error) {
	s, err := browser.Launch(ctx, profile, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// runStore is the write side of the run store.
type runStore interface {
	SaveRun(ctx context.Context, run *model.SearchRun) error
}

// searcher runs the queries of one search invocation.
type searcher struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	notify    io.Writer
	extractor *extract.Extractor

	pickMu sync.Mutex
	picker *session.Picker

	launch launchFunc

	// proxyServer is set by setupEgress.
	proxyServer string

	// outMu serializes report output from concurrent runs.
	outMu sync.Mutex
}

func newSearcher(cfg *config.Config, logger *slog.Logger, out, notify io.Writer) (*searcher, error) {
	rot := cfg.Rules.Rotation
	viewports := make([]model.Viewport, 0, len(rot.Viewports))
	for _, v := range rot.Viewports {
		viewports = append(viewports, model.Viewport{Width: v.Width, Height: v.Height})
	}
	table, err := session.NewTable(rot.UserAgents, viewports, rot.Locales, rot.Timezones)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	extractor, err := extract.New(cfg.Rules.Extract,
		extract.WithMaxRecords(cfg.MaxRecords),
		extract.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &searcher{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		notify:    notify,
		extractor: extractor,
		picker:    session.NewSeededPicker(table, cfg.Seed),
		launch:    launchBrowser,
	}, nil
}

// progress prints a progress line unless --quiet is set.
func (s *searcher) progress(format string, args ...any) {
	if s.cfg.Quiet {
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *searcher) pick() model.Profile {
	s.pickMu.Lock()
	defer s.pickMu.Unlock()
	return s.picker.Pick()
}

// run performs every query, reports and stores each run, and writes the
// output file. It returns an error when any run failed.
func (s *searcher) run(ctx context.Context) error {
	var store runStore
	if s.cfg.SaveToDB {
		rs, err := openRunStore(ctx, s.cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		s.logger.Info("database opened", "location", rs.Location())
		store = rs
	}

	cleanup, err := s.setupEgress(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.runQueries(ctx, store)
}

func (s *searcher) runQueries(ctx context.Context, store runStore) error {
	queries := s.cfg.Queries
	total := len(queries)
	if total > 1 {
		s.progress("Searching %d queries (concurrency: %d)...\n\n", total, s.cfg.BatchSize)
	}
	start := time.Now()

	bp := pipeline.NewBatchProcessor(s.runOne,
		pipeline.WithConcurrency(s.cfg.BatchSize),
		pipeline.WithBatchLogger(s.logger),
	)

	runs := make([]*model.SearchRun, total)
	batchErr := bp.ProcessBatchWithCallback(ctx, queries, func(run *model.SearchRun, index int) {
		if total > 1 {
			s.progress("[%d/%d] Search completed: %s\n", index+1, total, run.Query)
		}
		if err := s.outputReport(run); err != nil {
			s.logger.Error("report failed", "query", run.Query, "error", err)
		}
		s.saveRun(ctx, store, run)

		s.outMu.Lock()
		runs[index] = run
		s.outMu.Unlock()
	})

	if !s.cfg.NoFile {
		if err := report.SaveJSON(s.cfg.OutputFile, collectRecords(runs)); err != nil {
			return err
		}
		s.progress("Saved listings to %s\n", s.cfg.OutputFile)
	}

	if total > 1 {
		s.progress("\nBatch completed in %s\n", time.Since(start).Round(time.Millisecond))
	}

	if batchErr != nil {
		return batchErr
	}
	return failedRunsError(runs)
}

// runOne searches for query in a fresh browser. The browser is closed
// before it returns, whatever the outcome.
func (s *searcher) runOne(ctx context.Context, query string) *model.SearchRun {
	profile := s.pick()
	run := model.NewSearchRun(query, profile)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	s.progress("Searching for %q...\n", query)

	page, err := s.launch(ctx, profile, browser.Options{
		Headless:    s.cfg.Headless,
		ExecPath:    s.cfg.ChromePath,
		ProxyServer: s.proxyServer,
		Logger:      s.logger,
	})
	if err != nil {
		run.Error = err.Error()
		run.FinishedAt = time.Now()
		return run
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close browser", "query", query, "error", err)
		}
	}()

	p := pipeline.DefaultPipeline(page, s.cfg.Rules, s.extractor,
		pipeline.WithChallengeTimeout(s.cfg.ChallengeTimeout),
		pipeline.WithNavigationInterval(s.cfg.NavigationInterval),
		pipeline.WithNotify(s.notify),
		pipeline.WithSearchLogger(s.logger),
	)
	if err := p.Execute(ctx, run); err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
	} else {
		s.progress("Found %d listings in %s\n", len(run.Records), run.Duration().Round(time.Millisecond))
	}
	return run
}

// outputReport prints run in the selected format.
func (s *searcher) outputReport(run *model.SearchRun) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	switch {
	case s.cfg.MarkdownReport:
		_, err := report.NewMarkdownWriter(s.out, s.cfg.Rules.Extract.Sentinel).WriteRun(run)
		return err
	case s.cfg.TextReport:
		_, err := report.NewSimpleWriter(s.out,
			report.WithVerbose(s.cfg.Verbose),
			report.WithSentinel(s.cfg.Rules.Extract.Sentinel),
		).WriteRun(run)
		return err
	default:
		if run.Failed() {
			fmt.Fprintf(s.notify, "Search error for %q: %s\n", run.Query, run.Error)
		}
		_, err := report.NewJSONWriter(s.out, report.WithPrettyPrint()).Write(run.Records)
		return err
	}
}

// saveRun stores run if a store is open. Failures are logged; the
// search result on stdout and in the file is not affected.
func (s *searcher) saveRun(ctx context.Context, store runStore, run *model.SearchRun) {
	if store == nil {
		return
	}
	// The run is stored even when ctx was cancelled mid-search.
	ctx = context.WithoutCancel(ctx)
	if err := store.SaveRun(ctx, run); err != nil {
		s.logger.Error("failed to save run", "query", run.Query, "error", err)
		return
	}
	s.logger.Info("run saved to database", "query", run.Query, "id", run.ID)
}

// setupEgress verifies the configured proxy, or starts embedded Tor, and
// sets s.proxyServer. The returned cleanup is always non-nil.
func (s *searcher) setupEgress(ctx context.Context) (func(), error) {
	noop := func() {}

	cleanup := noop

	var client *egress.Client
	var err error
	switch {
	case s.cfg.UseTor:
		var embedded *egress.EmbeddedTor
		client, embedded, err = s.startEmbeddedTor(ctx)
		if err != nil {
			return noop, err
		}
		cleanup = func() {
			s.logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				s.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
	case s.cfg.ProxyAddress != "":
		client, err = egress.NewClient(s.cfg.ProxyAddress, s.cfg.Timeout)
		if err != nil {
			return noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != egress.ProxyStatusOK {
			return noop, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, client.ProxyAddress(), status.Error())
		}
		s.logger.Info("proxy connection verified", "address", client.ProxyAddress())
	default:
		return noop, nil
	}

	if err := client.CheckReachable(ctx, s.cfg.Rules.Search.EngineURL); err != nil {
		cleanup()
		return noop, err
	}

	s.proxyServer = client.BrowserProxy()
	return cleanup, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a verified
// client for its SOCKS port.
func (s *searcher) startEmbeddedTor(ctx context.Context) (*egress.Client, *egress.EmbeddedTor, error) {
	s.progress("Starting embedded Tor daemon...\n")
	s.progress("This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := egress.NewEmbeddedTor(egress.WithStartupTimeout(s.cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	s.logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)
	s.progress("SOCKS proxy: %s\n\n", embedded.SocksAddr())

	client, err := embedded.NewClient(s.cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != egress.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}
	return client, embedded, nil
}

// collectRecords merges the records of runs in query order, keeping the
// first occurrence of each identifier. Nil runs are skipped.
func collectRecords(runs []*model.SearchRun) []model.ListingRecord {
	records := []model.ListingRecord{}
	seen := make(map[string]struct{})
	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, r := range run.Records {
			if _, ok := seen[r.Identifier]; ok {
				continue
			}
			seen[r.Identifier] = struct{}{}
			records = append(records, r)
		}
	}
	return records
}

// failedRunsError reports failed runs, or nil when all succeeded.
func failedRunsError(runs []*model.SearchRun) error {
	var failed []*model.SearchRun
	for _, run := range runs {
		if run != nil && run.Failed() {
			failed = append(failed, run)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("search %q failed: %s", failed[0].Query, failed[0].Error)
	default:
		return fmt.Errorf("%d of %d searches failed", len(failed), len(runs))
	}
}

var _ runStore = (*database.RunStore)(nil)
