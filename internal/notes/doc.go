// Package notes reads the curated notes spreadsheet.
//
// The spreadsheet is a CSV export with a header row. The "Bug Number"
// column is required; "Test" and "Disabled on" are read when present and
// every other column is ignored. Notes are keyed by bug number.
package notes
