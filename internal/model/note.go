package model

// Note is one curated annotation from the notes spreadsheet.
// Notes are keyed by BugID; a bug has at most one note.
type Note struct {
	// BugID is the value of the "Bug Number" column.
	BugID int `json:"bug_id"`

	// TestName is the value of the "Test" column. Empty when the
	// spreadsheet does not name the disabled test.
	TestName string `json:"test_name,omitempty"`

	// DisabledOn is the value of the "Disabled on" column, naming the
	// platforms the test was disabled on.
	DisabledOn string `json:"disabled_on,omitempty"`
}
