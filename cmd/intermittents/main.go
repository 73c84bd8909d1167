// Package main provides the entry point for the intermittents CLI.
//
// intermittents builds the disabled intermittent-failure report: it
// fetches the open intermittent bugs from Bugzilla, joins them with the
// curated notes spreadsheet and renders an HTML table.
//
// Usage:
//
//	intermittents report --notes notes.csv > report.html
//	intermittents report --all --output-dir reports/
//	intermittents history --diff
//
// See --help for all available options.
package main

func main() {
	Execute()
}
