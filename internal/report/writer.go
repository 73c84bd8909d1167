package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/webext-qa/intermittents/internal/format"
	"github.com/webext-qa/intermittents/internal/model"
)

// Output formats understood by New.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

var (
	// ErrUnknownFormat is returned by New for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrNilReport is returned when a writer is given no report.
	ErrNilReport = errors.New("nil report")
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)

	// WriteDiff outputs the comparison of two stored runs.
	WriteDiff(c *Comparison) (int, error)
}

// Comparison is the difference between two stored runs of a profile.
type Comparison struct {
	Profile string `json:"profile"`

	PreviousRunID string    `json:"previous_run_id"`
	PreviousAt    time.Time `json:"previous_at"`
	CurrentRunID  string    `json:"current_run_id"`
	CurrentAt     time.Time `json:"current_at"`

	Diff *model.RowDiff `json:"diff"`
}

// Options selects format specific behavior for New.
type Options struct {
	// Standalone wraps HTML output in a complete document.
	Standalone bool

	// Title is the document title of standalone HTML output.
	Title string

	// Pretty indents JSON output.
	Pretty bool

	// Version, when set, wraps JSON output in a JSONReport carrying it.
	Version string
}

// New creates the Writer for the named format.
func New(name string, output io.Writer, opts Options) (Writer, error) {
	switch name {
	case FormatHTML, "":
		htmlOpts := []HTMLWriterOption{}
		if opts.Standalone {
			htmlOpts = append(htmlOpts, WithStandalone())
		}
		if opts.Title != "" {
			htmlOpts = append(htmlOpts, WithTitle(opts.Title))
		}
		return NewHTMLWriter(output, htmlOpts...), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		jsonOpts := []JSONWriterOption{}
		if opts.Pretty {
			jsonOpts = append(jsonOpts, WithPrettyPrint())
		}
		if opts.Version != "" {
			return NewFullJSONWriter(output, opts.Version, jsonOpts...), nil
		}
		return NewJSONWriter(output, jsonOpts...), nil
	case FormatText:
		return NewSimpleWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension used for the named format.
func Extension(name string) string {
	switch name {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	case FormatText:
		return ".txt"
	default:
		return ".html"
	}
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteDiff(c *Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(c)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// tableOf returns the formatted table of a report, building it from the
// rows when the pipeline did not.
func tableOf(report *model.Report) *model.Table {
	if report.Table != nil {
		return report.Table
	}
	return format.NewFormatter(report.TrackerURL).Table(report.Rows)
}

// comparisonOf returns c with a non-nil Diff.
func comparisonOf(c *Comparison) *Comparison {
	if c == nil {
		return &Comparison{Diff: &model.RowDiff{}}
	}
	if c.Diff == nil {
		cp := *c
		cp.Diff = &model.RowDiff{}
		return &cp
	}
	return c
}
