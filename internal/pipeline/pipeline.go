package pipeline

import (
	"context"
	"log/slog"

	"github.com/webext-qa/intermittents/internal/model"
)

// Step is one stage of a report build.
//
// Design decision: Steps are an interface rather than plain functions so
// that each one carries its own inputs (the notes path, the tracker
// fetcher, the unassigned address) and a Name for logs. The builder
// constructs them once per profile; a Step holds no state between runs.
type Step interface {
	// Do runs the step against report. It reads what earlier steps put in
	// report and adds its own output. A returned error ends the run; a step
	// never records a partial result and returns nil.
	Do(ctx context.Context, report *model.Report) error

	// Name returns the step name used in logs and PerformedSteps.
	Name() string
}

// Pipeline executes steps in order and stops at the first failure.
//
// There is no continue-on-error mode. Every step depends on the one
// before it: rows cannot be joined without notes and bugs, nor formatted
// before they are sorted and filled. A report built past a failed step
// would silently drop bugs or notes.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
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

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against report. On failure the error is
// recorded in report and returned.
//
// Design decision: Cancellation is checked between steps, not inside them.
// Only the tracker fetch blocks, and it passes ctx to its HTTP requests, so
// it stops on its own. The other steps are in-memory and short; interrupting
// them midway would leave the rows half sorted or half filled for nothing.
func (p *Pipeline) Execute(ctx context.Context, report *model.Report) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"profile", report.Profile,
				"reason", err,
			)
			report.Error = err
			report.ErrorMessage = err.Error()
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"profile", report.Profile,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"profile", report.Profile,
				"error", err,
			)
			report.Error = err
			report.ErrorMessage = err.Error()
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"profile", report.Profile,
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
