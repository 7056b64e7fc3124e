package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/roomscout/internal/model"
)

// Step is one stage of a search run. Do returns an error only when the
// run cannot continue; recoverable problems are recorded on the run with
// AddDiagnostic and Do returns nil.
type Step interface {
	Do(ctx context.Context, run *model.SearchRun) error
	Name() string
}

// Pipeline executes steps in order and stops at the first error.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step in sequence against run.
//
// Cancellation is checked before each step; steps bound their own waits.
// On failure the error message is stored in run.Error, and run.TimedOut
// is set when the failure was a deadline. run.FinishedAt is always set.
func (p *Pipeline) Execute(ctx context.Context, run *model.SearchRun) (err error) {
	defer func() {
		run.FinishedAt = time.Now()
		if err != nil {
			run.Error = err.Error()
			run.TimedOut = errors.Is(err, context.DeadlineExceeded)
		}
	}()

	for _, step := range p.steps {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"query", run.Query,
				"reason", ctxErr,
			)
			return ctxErr
		}

		p.logger.Info("executing step", "step", step.Name(), "query", run.Query)

		if stepErr := step.Do(ctx, run); stepErr != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"query", run.Query,
				"error", stepErr,
			)
			return stepErr
		}

		p.logger.Debug("step completed", "step", step.Name(), "query", run.Query)
		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
