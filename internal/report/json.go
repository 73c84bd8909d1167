package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/webext-qa/intermittents/internal/model"
)

// JSONWriter outputs reports in JSON format for other tools.
// Rows are written with their raw values; the HTML cell formatting is
// left to the consumer. Markup is not escaped.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output, as json.Encoder.SetIndent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	if report == nil {
		return 0, ErrNilReport
	}
	return w.writeJSON(report)
}

// WriteDiff outputs the comparison in JSON format.
func (w *JSONWriter) WriteDiff(c *Comparison) (int, error) {
	return w.writeJSON(comparisonOf(c))
}

// writeJSON encodes v as one JSON document followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.prefix != "" || w.indent != "" {
		enc.SetIndent(w.prefix, w.indent)
	}
	if err := enc.Encode(v); err != nil {
		return 0, fmt.Errorf("failed to encode json: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport wraps a report with the tool version and the rendered
// table, for consumers that want to display the report unchanged.
type JSONReport struct {
	// Version is the tool version that generated this report.
	Version string `json:"version"`

	// Caption is the "Last generated" line.
	Caption string `json:"caption"`

	// Report is the full report.
	Report *model.Report `json:"report"`

	// Table is the formatted table, with HTML cells marked.
	Table *model.Table `json:"table"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.Report, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Caption: report.Caption(),
		Report:  report,
		Table:   tableOf(report),
	}
}

// FullJSONWriter outputs complete reports with metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.Report) (int, error) {
	if report == nil {
		return 0, ErrNilReport
	}
	return w.writeJSON(NewJSONReport(report, w.version))
}
