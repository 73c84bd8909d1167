// Package pipeline runs a report build as a sequence of steps.
//
// A build loads the notes spreadsheet, fetches the matching bugs, joins the
// two, sorts and fills the rows, and formats the table. Each stage is a
// Step that reads and extends the *model.Report passed along the pipeline.
// The first failing step stops the run; no partial report is produced.
//
// BatchProcessor builds several profiles concurrently with errgroup, one
// pipeline per profile. A failing profile does not stop the others; its
// error is recorded in its report.
package pipeline
