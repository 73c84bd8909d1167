// Package model defines the data structures shared by the report pipeline.
//
// Bugs come from the tracker, Notes come from the curated spreadsheet, and
// ReportRows are the joined result that every writer renders. A Report
// carries one complete run: its inputs, the derived rows, the formatted
// table, and the generation timestamp used for the caption.
package model
