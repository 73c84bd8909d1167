package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/webext-qa/intermittents/internal/format"
	"github.com/webext-qa/intermittents/internal/model"
)

// ruleWidth is the width of the section rules.
const ruleWidth = 70

// SimpleWriter outputs reports as aligned plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the whiteboard and see-also columns.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the wide table with every column.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as text.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	if report == nil {
		return 0, ErrNilReport
	}

	var sb strings.Builder

	w.writeHeader(&sb, report)
	if err := w.writeRows(&sb, report); err != nil {
		return 0, err
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	rule(sb, "=")
	fmt.Fprintf(sb, "DISABLED INTERMITTENT TESTS (%s)\n", report.Profile)
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "%s\n", report.Caption())
	fmt.Fprintf(sb, "Notes loaded:   %d\n", report.NotesLoaded)
	fmt.Fprintf(sb, "Bugs fetched:   %d\n", report.BugsFetched)
	fmt.Fprintf(sb, "Core platform:  %d\n", report.CorePlatformCount())
	fmt.Fprintf(sb, "Unspecified:    %d\n", report.UnspecifiedPlatformCount())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRows(sb *strings.Builder, report *model.Report) error {
	rule(sb, "-")
	if len(report.Rows) == 0 {
		sb.WriteString("  No disabled intermittent tests\n")
		return nil
	}

	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', 0)
	header := []string{"id", model.ColumnTest, model.ColumnStatus, model.ColumnPriority,
		model.ColumnDisabledOn, model.ColumnCorePlatform, model.ColumnAssignedTo, model.ColumnLastChangeTime}
	if w.verbose {
		header = append(header, model.ColumnWhiteboard, model.ColumnSeeAlso)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range report.Rows {
		cols := []string{
			strconv.Itoa(r.ID),
			oneLine(r.Test),
			r.Status,
			r.Priority,
			oneLine(r.DisabledOn),
			format.CorePlatformText(r.CorePlatform),
			r.AssignedTo,
			format.LastChange(r),
		}
		if w.verbose {
			cols = append(cols, oneLine(r.Whiteboard), strings.Join(r.SeeAlso, " "))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	return tw.Flush()
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
}

// WriteDiff outputs a comparison between two runs as text.
func (w *SimpleWriter) WriteDiff(c *Comparison) (int, error) {
	c = comparisonOf(c)
	d := c.Diff

	var sb strings.Builder
	rule(&sb, "=")
	fmt.Fprintf(&sb, "CHANGES (%s)\n", c.Profile)
	rule(&sb, "=")
	fmt.Fprintf(&sb, "Previous: %s  %s\n", c.PreviousRunID, c.PreviousAt.Format(model.CaptionLayout))
	fmt.Fprintf(&sb, "Current:  %s  %s\n\n", c.CurrentRunID, c.CurrentAt.Format(model.CaptionLayout))

	if !d.HasChanges() {
		sb.WriteString("No changes\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, r := range d.Added {
		fmt.Fprintf(&sb, "[+] %d %s (%s, %s)\n", r.ID, oneLine(r.Test), r.Priority, oneLine(r.DisabledOn))
	}
	for _, r := range d.Removed {
		fmt.Fprintf(&sb, "[-] %d %s (%s, %s)\n", r.ID, oneLine(r.Test), r.Priority, oneLine(r.DisabledOn))
	}
	for _, change := range d.Changed {
		fmt.Fprintf(&sb, "[~] %d %s\n", change.ID, oneLine(change.Test))
		for _, f := range change.Changes {
			fmt.Fprintf(&sb, "    %s: %s -> %s\n", f.Field, oneLine(f.Previous), oneLine(f.Current))
		}
	}
	fmt.Fprintf(&sb, "\n%d added, %d removed, %d changed, %d unchanged\n",
		len(d.Added), len(d.Removed), len(d.Changed), d.UnchangedCount)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, ruleWidth))
	sb.WriteString("\n")
}

// oneLine collapses whitespace, including tabs that would break columns.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
