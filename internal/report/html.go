package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/webext-qa/intermittents/internal/model"
)

// DefaultTitle is the document title of standalone HTML output.
const DefaultTitle = "Disabled intermittent tests"

// TableClass is the class attribute of the rendered table.
const TableClass = "intermittents"

const stylesheet = `body { font-family: sans-serif; margin: 1em 2em; }
table.intermittents { border-collapse: collapse; font-size: 0.9em; }
table.intermittents th, table.intermittents td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
table.intermittents thead th { background: #f0f0f0; }
table.intermittents tbody tr:nth-child(even) { background: #fafafa; }
p.caption { color: #555; }
`

// HTMLWriter outputs reports as an HTML table preceded by the
// "Last generated" caption.
//
// The output is built as an html.Node tree and rendered with html.Render,
// so plain cells are always escaped. Cells produced by a column formatter
// are parsed as fragments in a <td> context and grafted into the tree.
type HTMLWriter struct {
	baseWriter

	// standalone wraps the output in a complete document.
	standalone bool

	title string
}

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithStandalone wraps the output in a complete HTML document with an
// embedded stylesheet.
func WithStandalone() HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.standalone = true
	}
}

// WithTitle sets the document title used by standalone output.
func WithTitle(title string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.title = title
	}
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{
		baseWriter: newBaseWriter(output),
		title:      DefaultTitle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the caption and the report table.
func (w *HTMLWriter) Write(report *model.Report) (int, error) {
	if report == nil {
		return 0, ErrNilReport
	}

	caption := element(atom.P, attr("class", "caption"))
	caption.AppendChild(text(report.Caption()))

	table, err := tableNode(tableOf(report))
	if err != nil {
		return 0, err
	}
	return w.render(caption, table)
}

// WriteDiff outputs the comparison as one table per kind of change.
func (w *HTMLWriter) WriteDiff(c *Comparison) (int, error) {
	c = comparisonOf(c)
	d := c.Diff

	nodes := []*html.Node{}
	summary := element(atom.P, attr("class", "caption"))
	summary.AppendChild(text(fmt.Sprintf("Changes in %s from run %s (%s) to run %s (%s)",
		c.Profile,
		c.PreviousRunID, c.PreviousAt.Format(model.CaptionLayout),
		c.CurrentRunID, c.CurrentAt.Format(model.CaptionLayout),
	)))
	nodes = append(nodes, summary)

	if !d.HasChanges() {
		p := element(atom.P)
		p.AppendChild(text("No changes."))
		return w.render(append(nodes, p)...)
	}

	rowColumns := []string{"id", model.ColumnTest, model.ColumnPriority, model.ColumnDisabledOn}
	sections := []struct {
		heading string
		rows    []model.ReportRow
	}{
		{"Added", d.Added},
		{"Removed", d.Removed},
	}
	for _, s := range sections {
		if len(s.rows) == 0 {
			continue
		}
		cells := make([][]model.Cell, 0, len(s.rows))
		for _, r := range s.rows {
			cells = append(cells, []model.Cell{
				{Value: strconv.Itoa(r.ID)},
				{Value: r.Test},
				{Value: r.Priority},
				{Value: r.DisabledOn},
			})
		}
		table, err := tableNode(&model.Table{Columns: rowColumns, Rows: cells})
		if err != nil {
			return 0, err
		}
		nodes = append(nodes, heading(fmt.Sprintf("%s (%d)", s.heading, len(s.rows))), table)
	}

	if len(d.Changed) > 0 {
		cells := [][]model.Cell{}
		for _, change := range d.Changed {
			for _, f := range change.Changes {
				cells = append(cells, []model.Cell{
					{Value: strconv.Itoa(change.ID)},
					{Value: change.Test},
					{Value: f.Field},
					{Value: f.Previous},
					{Value: f.Current},
				})
			}
		}
		table, err := tableNode(&model.Table{
			Columns: []string{"id", model.ColumnTest, "field", "previous", "current"},
			Rows:    cells,
		})
		if err != nil {
			return 0, err
		}
		nodes = append(nodes, heading(fmt.Sprintf("Changed (%d)", len(d.Changed))), table)
	}

	return w.render(nodes...)
}

// render writes nodes either as a fragment or inside a document.
func (w *HTMLWriter) render(nodes ...*html.Node) (int, error) {
	var buf bytes.Buffer

	if w.standalone {
		if err := html.Render(&buf, w.document(nodes)); err != nil {
			return 0, err
		}
		buf.WriteByte('\n')
		return w.output.Write(buf.Bytes())
	}

	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return 0, err
		}
		buf.WriteByte('\n')
	}
	return w.output.Write(buf.Bytes())
}

func (w *HTMLWriter) document(body []*html.Node) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, attr("lang", "en"))
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	title := element(atom.Title)
	title.AppendChild(text(w.title))
	head.AppendChild(title)
	style := element(atom.Style)
	style.AppendChild(text(stylesheet))
	head.AppendChild(style)
	root.AppendChild(head)

	b := element(atom.Body)
	h1 := element(atom.H1)
	h1.AppendChild(text(w.title))
	b.AppendChild(h1)
	for _, n := range body {
		b.AppendChild(n)
	}
	root.AppendChild(b)

	return doc
}

// tableNode builds the <table> element of a formatted table.
func tableNode(t *model.Table) (*html.Node, error) {
	table := element(atom.Table, attr("class", TableClass))

	thead := element(atom.Thead)
	hr := element(atom.Tr)
	for _, col := range t.Columns {
		th := element(atom.Th, attr("scope", "col"))
		th.AppendChild(text(col))
		hr.AppendChild(th)
	}
	thead.AppendChild(hr)
	table.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, row := range t.Rows {
		tr := element(atom.Tr)
		for _, cell := range row {
			td, err := cellNode(cell)
			if err != nil {
				return nil, err
			}
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	table.AppendChild(tbody)

	return table, nil
}

// cellNode builds one <td>. HTML cells are parsed as fragments.
func cellNode(cell model.Cell) (*html.Node, error) {
	td := element(atom.Td)
	if !cell.HTML {
		td.AppendChild(text(cell.Value))
		return td, nil
	}

	children, err := html.ParseFragment(strings.NewReader(cell.Value), element(atom.Td))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cell %q: %w", cell.Value, err)
	}
	for _, c := range children {
		td.AppendChild(c)
	}
	return td, nil
}

func heading(s string) *html.Node {
	h := element(atom.H2)
	h.AppendChild(text(s))
	return h
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
