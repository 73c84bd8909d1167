package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webext-qa/intermittents/internal/format"
	"github.com/webext-qa/intermittents/internal/model"
	"github.com/webext-qa/intermittents/internal/notes"
)

// NotesLoader reads the notes spreadsheet at a path.
type NotesLoader func(path string) (map[int]model.Note, error)

// BugFetcher searches the tracker.
type BugFetcher interface {
	FetchBugs(ctx context.Context, f model.Filter) ([]model.Bug, error)
}

// LoadNotesStep reads the curated notes into the report.
type LoadNotesStep struct {
	path   string
	load   NotesLoader
	logger *slog.Logger
}

// NewLoadNotesStep creates a step reading notes from path.
// A nil loader uses notes.Load.
func NewLoadNotesStep(path string, load NotesLoader, logger *slog.Logger) *LoadNotesStep {
	if load == nil {
		load = notes.Load
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadNotesStep{path: path, load: load, logger: logger}
}

// Name returns the step name.
func (s *LoadNotesStep) Name() string {
	return "load_notes"
}

// Do loads the notes.
func (s *LoadNotesStep) Do(_ context.Context, report *model.Report) error {
	report.NotesPath = s.path

	loaded, err := s.load(s.path)
	if err != nil {
		return err
	}
	report.Notes = loaded
	report.NotesLoaded = len(loaded)

	s.logger.Info("notes loaded", "profile", report.Profile, "path", s.path, "count", len(loaded))
	return nil
}

// FetchBugsStep fetches the matching bugs from the tracker.
type FetchBugsStep struct {
	fetcher BugFetcher
	filter  model.Filter
	logger  *slog.Logger
}

// NewFetchBugsStep creates a step running filter against fetcher.
func NewFetchBugsStep(fetcher BugFetcher, filter model.Filter, logger *slog.Logger) *FetchBugsStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchBugsStep{fetcher: fetcher, filter: filter, logger: logger}
}

// Name returns the step name.
func (s *FetchBugsStep) Name() string {
	return "fetch_bugs"
}

// Do fetches the bugs.
func (s *FetchBugsStep) Do(ctx context.Context, report *model.Report) error {
	if s.fetcher == nil {
		return fmt.Errorf("fetch bugs: no tracker client configured")
	}
	report.Filter = s.filter

	bugs, err := s.fetcher.FetchBugs(ctx, s.filter)
	if err != nil {
		return err
	}
	report.Bugs = bugs
	report.BugsFetched = len(bugs)

	s.logger.Info("bugs fetched", "profile", report.Profile, "product", s.filter.Product, "count", len(bugs))
	return nil
}

// MergeStep left-joins the fetched bugs with the notes.
type MergeStep struct {
	unassigned string
}

// NewMergeStep creates a merge step. unassigned is the tracker's
// placeholder assignee address.
func NewMergeStep(unassigned string) *MergeStep {
	if unassigned == "" {
		unassigned = format.DefaultUnassigned
	}
	return &MergeStep{unassigned: unassigned}
}

// Name returns the step name.
func (s *MergeStep) Name() string {
	return "merge"
}

// Do joins report.Bugs with report.Notes into report.Rows.
func (s *MergeStep) Do(_ context.Context, report *model.Report) error {
	report.Rows = Merge(report.Bugs, report.Notes, s.unassigned)
	return nil
}

// Merge returns one row per bug, in bug order. A bug without a note keeps
// its summary as the test name and has no "Disabled on" value. Notes
// without a bug are dropped.
func Merge(bugs []model.Bug, byID map[int]model.Note, unassigned string) []model.ReportRow {
	rows := make([]model.ReportRow, 0, len(bugs))
	for _, b := range bugs {
		note := byID[b.ID]

		test := note.TestName
		if test == "" {
			test = b.Summary
		}

		rows = append(rows, model.ReportRow{
			ID:             b.ID,
			Test:           test,
			Status:         b.Status,
			Priority:       b.Priority,
			DisabledOn:     note.DisabledOn,
			CorePlatform:   format.IsCorePlatform(note.DisabledOn),
			Whiteboard:     b.Whiteboard,
			AssignedTo:     format.Assignee(b.AssignedTo, unassigned),
			SeeAlso:        b.SeeAlso,
			LastChangeTime: b.LastChangeTime,
		})
	}
	return rows
}

// SortStep orders the rows and fills missing values.
type SortStep struct{}

// NewSortStep creates a sort step.
func NewSortStep() *SortStep {
	return &SortStep{}
}

// Name returns the step name.
func (s *SortStep) Name() string {
	return "sort"
}

// Do sorts by priority, core platform and last change, then fills gaps.
func (s *SortStep) Do(_ context.Context, report *model.Report) error {
	model.SortRows(report.Rows)
	model.FillMissing(report.Rows)
	return nil
}

// RenderStep formats the rows into the report table.
type RenderStep struct {
	formatter *format.Formatter
}

// NewRenderStep creates a render step linking to trackerURL.
func NewRenderStep(trackerURL string) *RenderStep {
	return &RenderStep{formatter: format.NewFormatter(trackerURL)}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do builds report.Table.
func (s *RenderStep) Do(_ context.Context, report *model.Report) error {
	report.TrackerURL = s.formatter.TrackerURL()
	report.Table = s.formatter.Table(report.Rows)
	return nil
}

// DefaultPipelineConfig holds the inputs of a standard report build.
type DefaultPipelineConfig struct {
	// NotesPath is the notes spreadsheet.
	NotesPath string

	// Filter is the tracker search.
	Filter model.Filter

	// Fetcher runs the search.
	Fetcher BugFetcher

	// Loader reads the notes. Nil uses notes.Load.
	Loader NotesLoader

	// TrackerURL is used for bug links.
	TrackerURL string

	// Unassigned is the tracker's placeholder assignee.
	Unassigned string
}

// DefaultPipeline returns the standard build: load notes, fetch bugs,
// merge, sort and render.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewLoadNotesStep(cfg.NotesPath, cfg.Loader, p.logger),
		NewFetchBugsStep(cfg.Fetcher, cfg.Filter, p.logger),
		NewMergeStep(cfg.Unassigned),
		NewSortStep(),
		NewRenderStep(cfg.TrackerURL),
	)
	return p
}
