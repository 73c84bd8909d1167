package model

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"time"

	"golang.org/x/crypto/sha3"
)

// CaptionLayout is the timestamp layout of the "Last generated" caption.
const CaptionLayout = "2006-01-02 15:04:05.000000"

// Column headers of the rendered table, in output order.
const (
	ColumnLink           = "\U0001F517"
	ColumnTest           = "Test"
	ColumnStatus         = "status"
	ColumnPriority       = "priority"
	ColumnDisabledOn     = "Disabled on"
	ColumnCorePlatform   = "Core Platform"
	ColumnWhiteboard     = "whiteboard"
	ColumnAssignedTo     = "assigned_to"
	ColumnSeeAlso        = "see_also"
	ColumnLastChangeTime = "last_change_time"
)

// Columns lists the table headers in the order they are rendered.
var Columns = []string{
	ColumnLink,
	ColumnTest,
	ColumnStatus,
	ColumnPriority,
	ColumnDisabledOn,
	ColumnCorePlatform,
	ColumnWhiteboard,
	ColumnAssignedTo,
	ColumnSeeAlso,
	ColumnLastChangeTime,
}

// Cell is one rendered table cell.
type Cell struct {
	// Value is the cell content.
	Value string `json:"value"`

	// HTML marks Value as an HTML fragment produced by a column
	// formatter. Plain cells are escaped when rendered.
	HTML bool `json:"html,omitempty"`
}

// Table is the formatted form of a report, ready for a writer.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// Report holds everything produced by a single run for one profile.
type Report struct {
	// RunID identifies the run in the history store.
	RunID string `json:"run_id,omitempty"`

	// Profile is the configuration profile the run was built from.
	Profile string `json:"profile"`

	// TrackerURL is the tracker base URL used for links.
	TrackerURL string `json:"tracker_url"`

	// NotesPath is the notes spreadsheet that was loaded.
	NotesPath string `json:"notes_path"`

	// Filter is the tracker search that was executed.
	Filter Filter `json:"filter"`

	// GeneratedAt is the run timestamp shown in the caption.
	GeneratedAt time.Time `json:"generated_at"`

	// Notes and Bugs are the raw inputs. They are not serialized;
	// Rows carries everything the report shows.
	Notes map[int]Note `json:"-"`
	Bugs  []Bug        `json:"-"`

	// NotesLoaded is the number of notes read from the spreadsheet.
	NotesLoaded int `json:"notes_loaded"`

	// BugsFetched is the number of bugs returned by the tracker.
	BugsFetched int `json:"bugs_fetched"`

	// Rows are the joined, sorted and filled report rows.
	Rows []ReportRow `json:"rows"`

	// Table is the formatted table. It is rebuilt from Rows when needed.
	Table *Table `json:"-"`

	// PerformedSteps records the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the error that stopped the run, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewReport creates an empty report for the named profile, stamped now.
func NewReport(profile string) *Report {
	return &Report{
		Profile:        profile,
		GeneratedAt:    time.Now(),
		PerformedSteps: make([]string, 0),
	}
}

// Caption returns the "Last generated" line shown with the table.
func (r *Report) Caption() string {
	return "Last generated: " + r.GeneratedAt.Format(CaptionLayout)
}

// CorePlatformCount returns how many rows are disabled on a core platform.
func (r *Report) CorePlatformCount() int {
	n := 0
	for _, row := range r.Rows {
		if row.CorePlatform {
			n++
		}
	}
	return n
}

// UnspecifiedPlatformCount returns how many rows have no "Disabled on" value.
func (r *Report) UnspecifiedPlatformCount() int {
	n := 0
	for _, row := range r.Rows {
		if row.DisabledOn == Placeholder {
			n++
		}
	}
	return n
}

// Digest returns a hex SHA3-256 digest of the report rows.
// Rows are hashed in bug id order, so two runs that produce the same rows
// have the same digest whatever order the tracker returned them in.
func (r *Report) Digest() string {
	rows := slices.Clone(r.Rows)
	slices.SortFunc(rows, func(a, b ReportRow) int { return a.ID - b.ID })

	data, err := json.Marshal(rows)
	if err != nil {
		return ""
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
