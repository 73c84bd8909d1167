package model

import (
	"cmp"
	"slices"
	"time"
)

// Placeholder fills every cell that has no value after the join.
const Placeholder = "-"

// ReportRow is a Bug joined with its optional Note plus the derived columns.
// Rows are built once per run and discarded after rendering.
type ReportRow struct {
	// ID is the tracker bug number.
	ID int `json:"id"`

	// Test is the note's test name, or the bug summary when the note
	// does not name one.
	Test string `json:"test"`

	Status   string `json:"status"`
	Priority string `json:"priority"`

	// DisabledOn comes from the note; it is empty when the bug has no note.
	DisabledOn string `json:"disabled_on"`

	// CorePlatform reports whether DisabledOn affects Windows or all platforms.
	CorePlatform bool `json:"core_platform"`

	Whiteboard string `json:"whiteboard"`

	// AssignedTo is the normalized assignee: the email local part, or
	// Placeholder for the tracker's unassigned address.
	AssignedTo string `json:"assigned_to"`

	SeeAlso        []string  `json:"see_also"`
	LastChangeTime time.Time `json:"last_change_time"`
}

// SortRows orders rows by priority ascending, core platform rows first,
// then least recently changed first. Rows without a priority sort last.
// The sort is stable so equal rows keep their fetch order.
func SortRows(rows []ReportRow) {
	slices.SortStableFunc(rows, func(a, b ReportRow) int {
		if c := comparePriority(a.Priority, b.Priority); c != 0 {
			return c
		}
		if a.CorePlatform != b.CorePlatform {
			if a.CorePlatform {
				return -1
			}
			return 1
		}
		return a.LastChangeTime.Compare(b.LastChangeTime)
	})
}

func comparePriority(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	return cmp.Compare(a, b)
}

// FillMissing replaces every empty text cell with Placeholder.
// SeeAlso is left alone: an empty list renders as an empty cell.
func FillMissing(rows []ReportRow) {
	for i := range rows {
		r := &rows[i]
		for _, field := range []*string{
			&r.Test, &r.Status, &r.Priority, &r.DisabledOn, &r.Whiteboard, &r.AssignedTo,
		} {
			if *field == "" {
				*field = Placeholder
			}
		}
	}
}
