package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/roomscout/internal/model"
)

// RunFunc performs one complete search for query, including browser
// launch and teardown, and returns its report. It must always return a
// non-nil run; failures are recorded in run.Error.
type RunFunc func(ctx context.Context, query string) *model.SearchRun

// BatchProcessor runs several queries with a concurrency limit.
// Every query gets its own RunFunc call, so browser sessions are never
// shared between queries.
type BatchProcessor struct {
	run         RunFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor around run.
func NewBatchProcessor(run RunFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		run:         run,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// Concurrency returns the concurrency limit.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// ProcessBatch runs every query and returns the runs in query order.
// A failed run does not stop the others. The error is non-nil only when
// ctx ended before every query started; queries that never started have
// a nil entry.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, queries []string) ([]*model.SearchRun, error) {
	results := make([]*model.SearchRun, len(queries))
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, queries, func(run *model.SearchRun, index int) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = run
	})
	return results, err
}

// ProcessBatchWithCallback runs every query and calls callback with each
// finished run and its index in queries. callback is called from worker
// goroutines and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	queries []string,
	callback func(run *model.SearchRun, index int),
) error {
	bp.logger.Info("starting batch",
		"total_queries", len(queries),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	// A plain Group: one failed run must not cancel the others.
	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	var skipErr error
	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			skipErr = err
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bp.logger.Info("running query", "query", query, "index", i+1, "total", len(queries))

			run := bp.run(ctx, query)
			if run.Failed() {
				bp.logger.Warn("query failed", "query", query, "error", run.Error)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = skipErr
	}
	bp.logger.Info("batch complete",
		"total_queries", len(queries),
		"elapsed", time.Since(start),
	)
	return err
}
