// Package report writes built reports and history comparisons.
//
// Writers for each output format:
//   - HTMLWriter: the styled table plus the "Last generated" caption,
//     optionally wrapped in a complete HTML document
//   - MarkdownWriter: a Markdown document for wikis and pull requests
//   - JSONWriter: structured output for other tools
//   - SimpleWriter: aligned plain text for the terminal
//
// Writers implement the Writer interface, so they can be used
// interchangeably and combined with MultiWriter. DiffWriter is the
// matching interface for comparisons between two stored runs.
package report
