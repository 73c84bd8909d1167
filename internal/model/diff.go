package model

import "slices"

// FieldChange is one column whose value differs between two runs.
type FieldChange struct {
	Field    string `json:"field"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// RowChange lists the changed columns of a bug present in both runs.
type RowChange struct {
	ID      int           `json:"id"`
	Test    string        `json:"test"`
	Changes []FieldChange `json:"changes"`
}

// RowDiff is the result of comparing the rows of two runs.
type RowDiff struct {
	// Added are bugs present only in the current run.
	Added []ReportRow `json:"added,omitempty"`

	// Removed are bugs present only in the previous run.
	Removed []ReportRow `json:"removed,omitempty"`

	// Changed are bugs present in both runs with different values.
	Changed []RowChange `json:"changed,omitempty"`

	// UnchangedCount is the number of bugs identical in both runs.
	UnchangedCount int `json:"unchanged_count"`
}

// HasChanges reports whether the two runs differ at all.
func (d *RowDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// CompareRows compares two runs by bug id. The result lists are ordered
// by bug id.
func CompareRows(previous, current []ReportRow) *RowDiff {
	prevByID := make(map[int]ReportRow, len(previous))
	for _, r := range previous {
		prevByID[r.ID] = r
	}
	currByID := make(map[int]ReportRow, len(current))
	for _, r := range current {
		currByID[r.ID] = r
	}

	diff := &RowDiff{}
	for _, cur := range current {
		prev, ok := prevByID[cur.ID]
		if !ok {
			diff.Added = append(diff.Added, cur)
			continue
		}
		changes := compareFields(prev, cur)
		if len(changes) == 0 {
			diff.UnchangedCount++
			continue
		}
		diff.Changed = append(diff.Changed, RowChange{ID: cur.ID, Test: cur.Test, Changes: changes})
	}
	for _, prev := range previous {
		if _, ok := currByID[prev.ID]; !ok {
			diff.Removed = append(diff.Removed, prev)
		}
	}

	byID := func(a, b ReportRow) int { return a.ID - b.ID }
	slices.SortFunc(diff.Added, byID)
	slices.SortFunc(diff.Removed, byID)
	slices.SortFunc(diff.Changed, func(a, b RowChange) int { return a.ID - b.ID })

	return diff
}

func compareFields(prev, cur ReportRow) []FieldChange {
	pairs := []struct {
		field string
		p, c  string
	}{
		{ColumnTest, prev.Test, cur.Test},
		{ColumnStatus, prev.Status, cur.Status},
		{ColumnPriority, prev.Priority, cur.Priority},
		{ColumnDisabledOn, prev.DisabledOn, cur.DisabledOn},
		{ColumnWhiteboard, prev.Whiteboard, cur.Whiteboard},
		{ColumnAssignedTo, prev.AssignedTo, cur.AssignedTo},
	}

	var changes []FieldChange
	for _, p := range pairs {
		if p.p != p.c {
			changes = append(changes, FieldChange{Field: p.field, Previous: p.p, Current: p.c})
		}
	}
	return changes
}
