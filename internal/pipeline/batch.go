package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/webext-qa/intermittents/internal/model"
)

// DefaultConcurrency is the number of profiles built at once.
const DefaultConcurrency = 4

// Factory creates the pipeline of one profile.
type Factory func(profile string) (*Pipeline, error)

// BatchProcessor builds several profiles concurrently.
//
// Design decision: Batching lives here and not in Pipeline. A Pipeline is
// one profile's linear run and stays synchronous; the batch only decides
// how many of those runs are in flight. The Factory gives each profile a
// fresh pipeline, so no step is shared between goroutines.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	results []*model.Report
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the batch logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many profiles are built at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithClock sets the clock stamping completed reports.
func WithClock(now func() time.Time) BatchOption {
	return func(b *BatchProcessor) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBatchProcessor creates a BatchProcessor using factory for each profile.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch builds every profile and returns the reports in profile
// order. Failed builds are returned too, with Error set.
//
// Design decision: errgroup.SetLimit bounds the number of profiles in
// flight, one goroutine per profile. The goroutines never return a
// profile's build error to the group; that would cancel the shared context
// and abort the healthy profiles. Only cancellation of ctx itself ends the
// batch early. In that case the error is non-nil and the slots of the
// profiles never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, profiles []string) ([]*model.Report, error) {
	bp.logger.Info("starting batch",
		"profiles", len(profiles),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	bp.results = make([]*model.Report, len(profiles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, profile := range profiles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			report := bp.build(ctx, profile)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch complete",
		"profiles", len(profiles),
		"elapsed", time.Since(start),
	)
	return bp.results, err
}

func (bp *BatchProcessor) build(ctx context.Context, profile string) *model.Report {
	report := model.NewReport(profile)

	p, err := bp.factory(profile)
	if err != nil {
		report.Error = err
		report.ErrorMessage = err.Error()
		bp.logger.Warn("profile setup failed", "profile", profile, "error", err)
		return report
	}

	if err := p.Execute(ctx, report); err != nil {
		bp.logger.Warn("profile failed", "profile", profile, "error", err)
		return report
	}
	report.GeneratedAt = bp.now()

	bp.logger.Info("profile completed", "profile", profile, "rows", len(report.Rows))
	return report
}
