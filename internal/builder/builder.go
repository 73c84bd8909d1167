// Package builder produces disabled-intermittent reports.
//
// A Builder turns a validated config.Config into reports: it resolves the
// profile, creates the tracker client, runs the standard pipeline and
// stamps the result. A failed build returns no report.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/webext-qa/intermittents/internal/bugzilla"
	"github.com/webext-qa/intermittents/internal/config"
	"github.com/webext-qa/intermittents/internal/model"
	"github.com/webext-qa/intermittents/internal/pipeline"
)

// Builder builds reports for the profiles of a Config.
type Builder struct {
	cfg     *config.Config
	fetcher pipeline.BugFetcher
	loader  pipeline.NotesLoader
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithFetcher replaces the tracker client.
func WithFetcher(f pipeline.BugFetcher) Option {
	return func(b *Builder) {
		b.fetcher = f
	}
}

// WithNotesLoader replaces the notes reader.
func WithNotesLoader(l pipeline.NotesLoader) Option {
	return func(b *Builder) {
		b.loader = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the clock used for the "Last generated" timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Builder. Unless WithFetcher is given, a Bugzilla client is
// created from the tracker settings of cfg.
func New(cfg *config.Config, opts ...Option) (*Builder, error) {
	b := &Builder{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.fetcher == nil {
		client, err := newTrackerClient(cfg, b.logger)
		if err != nil {
			return nil, err
		}
		b.fetcher = client
	}
	return b, nil
}

func newTrackerClient(cfg *config.Config, logger *slog.Logger) (*bugzilla.Client, error) {
	opts := []bugzilla.Option{
		bugzilla.WithAPIKey(cfg.APIKey),
		bugzilla.WithTimeout(cfg.Timeout),
		bugzilla.WithPageSize(cfg.PageSize),
		bugzilla.WithUserAgent(cfg.UserAgent),
		bugzilla.WithLogger(logger),
	}
	if cfg.Proxy != "" {
		opts = append(opts, bugzilla.WithProxy(cfg.Proxy))
	}
	return bugzilla.NewClient(cfg.TrackerURL, opts...)
}

// Pipeline returns the build pipeline of the named profile.
func (b *Builder) Pipeline(profile string) (*pipeline.Pipeline, error) {
	p, err := b.cfg.ResolveProfile(profile)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", profile, err)
	}

	return pipeline.DefaultPipeline(pipeline.DefaultPipelineConfig{
		NotesPath:  p.Notes,
		Filter:     p.Filter(),
		Fetcher:    b.fetcher,
		Loader:     b.loader,
		TrackerURL: b.cfg.TrackerURL,
		Unassigned: b.cfg.Unassigned,
	}, pipeline.WithLogger(b.logger)), nil
}

// Build builds the configured profile.
func (b *Builder) Build(ctx context.Context) (*model.Report, error) {
	return b.BuildProfile(ctx, b.cfg.Profile)
}

// BuildProfile builds the named profile. On failure no report is returned.
func (b *Builder) BuildProfile(ctx context.Context, profile string) (*model.Report, error) {
	p, err := b.Pipeline(profile)
	if err != nil {
		return nil, err
	}

	report := model.NewReport(profile)
	if err := p.Execute(ctx, report); err != nil {
		return nil, err
	}
	b.finish(report)
	return report, nil
}

// BuildAll builds every profile of the config concurrently. Reports of
// successful profiles are returned in profile order; failures are joined
// into the returned error.
func (b *Builder) BuildAll(ctx context.Context) ([]*model.Report, error) {
	names := b.cfg.ProfileNames()

	bp := pipeline.NewBatchProcessor(b.Pipeline,
		pipeline.WithConcurrency(b.cfg.Concurrency),
		pipeline.WithBatchLogger(b.logger),
		pipeline.WithClock(b.now),
	)
	results, err := bp.ProcessBatch(ctx, names)

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	reports := make([]*model.Report, 0, len(results))
	for i, r := range results {
		switch {
		case r == nil:
			continue
		case r.Error != nil:
			errs = append(errs, fmt.Errorf("profile %q: %w", names[i], r.Error))
		default:
			b.finish(r)
			reports = append(reports, r)
		}
	}
	return reports, errors.Join(errs...)
}

// finish stamps a successful report.
func (b *Builder) finish(r *model.Report) {
	r.GeneratedAt = b.now()
	r.RunID = uuid.NewString()
	b.logger.Info("report built",
		"profile", r.Profile,
		"run_id", r.RunID,
		"rows", len(r.Rows),
		"core_platform", r.CorePlatformCount(),
	)
}
