package report

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/webext-qa/intermittents/internal/format"
	"github.com/webext-qa/intermittents/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, for wikis and
// pull request comments. Cells are written as Markdown rather than the
// HTML fragments of the HTML table.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	if report == nil {
		return 0, ErrNilReport
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeTable(md, report)
	w.writeFooter(md, report)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("Disabled intermittent tests: " + report.Profile)
	md.PlainText("")
	md.PlainText(report.Caption())
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Product", escapeCell(report.Filter.Product)},
			{"Components", escapeCell(componentsText(report.Filter.Components))},
			{"Notes loaded", strconv.Itoa(report.NotesLoaded)},
			{"Bugs fetched", strconv.Itoa(report.BugsFetched)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	if len(report.Rows) == 0 {
		md.Tip("No disabled intermittent tests.")
		md.PlainText("")
		return
	}

	w.writePieChart(md, report)

	core := report.CorePlatformCount()
	unspecified := report.UnspecifiedPlatformCount()
	switch {
	case core > 0:
		md.Warningf("%d test(s) disabled on Windows or on all platforms.", core)
	case unspecified > 0:
		md.Importantf("%d test(s) have no \"Disabled on\" note.", unspecified)
	default:
		md.Note("No test is disabled on a core platform.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of rows per priority.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	counts := map[string]uint64{}
	for _, r := range report.Rows {
		counts[r.Priority]++
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Disabled tests by priority"),
		piechart.WithShowData(true),
	)
	for _, p := range slices.Sorted(maps.Keys(counts)) {
		chart.LabelAndIntValue(p, counts[p])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeTable(md *markdown.Markdown, report *model.Report) {
	if len(report.Rows) == 0 {
		return
	}

	f := format.NewFormatter(report.TrackerURL)
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		disabled := escapeCell(r.DisabledOn)
		if r.CorePlatform || r.DisabledOn == model.Placeholder {
			disabled = "**" + disabled + "**"
		}
		rows = append(rows, []string{
			mdLink(model.ColumnLink, f.BugURL(r.ID)),
			escapeCell(r.Test),
			escapeCell(r.Status),
			escapeCell(r.Priority),
			disabled,
			format.CorePlatformText(r.CorePlatform),
			escapeCell(r.Whiteboard),
			escapeCell(r.AssignedTo),
			seeAlsoLinks(f, r.SeeAlso),
			format.LastChange(r),
		})
	}

	md.H2("Tests")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: model.Columns,
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown, report *model.Report) {
	md.HorizontalRule()
	md.PlainText("")
	if report.RunID != "" {
		md.PlainTextf("*Run %s*", report.RunID)
	}
}

// WriteDiff outputs a comparison between two runs in Markdown format.
func (w *MarkdownWriter) WriteDiff(c *Comparison) (int, error) {
	c = comparisonOf(c)
	d := c.Diff

	md := markdown.NewMarkdown(w.output)
	md.H1("Changes in " + c.Profile)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Run", "ID", "Generated"},
		Rows: [][]string{
			{"Previous", c.PreviousRunID, c.PreviousAt.Format(model.CaptionLayout)},
			{"Current", c.CurrentRunID, c.CurrentAt.Format(model.CaptionLayout)},
		},
	})
	md.PlainText("")

	if !d.HasChanges() {
		md.Tip("No changes between the two runs.")
		return len(md.String()), md.Build()
	}

	md.PlainTextf("%d added, %d removed, %d changed, %d unchanged.",
		len(d.Added), len(d.Removed), len(d.Changed), d.UnchangedCount)
	md.PlainText("")

	writeRowSection(md, "Added", d.Added)
	writeRowSection(md, "Removed", d.Removed)

	if len(d.Changed) > 0 {
		rows := [][]string{}
		for _, change := range d.Changed {
			for _, f := range change.Changes {
				rows = append(rows, []string{
					strconv.Itoa(change.ID),
					escapeCell(change.Test),
					f.Field,
					escapeCell(f.Previous),
					escapeCell(f.Current),
				})
			}
		}
		md.H2("Changed")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"id", model.ColumnTest, "field", "previous", "current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

func writeRowSection(md *markdown.Markdown, title string, rows []model.ReportRow) {
	if len(rows) == 0 {
		return
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			strconv.Itoa(r.ID),
			escapeCell(r.Test),
			escapeCell(r.Priority),
			escapeCell(r.DisabledOn),
		})
	}
	md.H2(title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"id", model.ColumnTest, model.ColumnPriority, model.ColumnDisabledOn},
		Rows:   out,
	})
	md.PlainText("")
}

func seeAlsoLinks(f *format.Formatter, links []string) string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		out = append(out, mdLink(f.SeeAlsoLabel(link), link))
	}
	return strings.Join(out, ", ")
}

// linkURLEscaper percent-encodes the characters that end a Markdown link
// destination or a table cell.
var linkURLEscaper = strings.NewReplacer(
	"(", "%28",
	")", "%29",
	"<", "%3C",
	">", "%3E",
	"|", "%7C",
	" ", "%20",
	"\t", "%09",
	"\n", "%0A",
	"\r", "%0D",
)

var linkLabelEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func mdLink(label, url string) string {
	return "[" + linkLabelEscaper.Replace(escapeCell(label)) + "](" + linkURLEscaper.Replace(url) + ")"
}

func componentsText(components []string) string {
	if len(components) == 0 {
		return "(all)"
	}
	return strings.Join(components, ", ")
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
