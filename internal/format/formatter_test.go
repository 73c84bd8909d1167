package format

import (
	"strings"
	"testing"
	"time"

	"github.com/webext-qa/intermittents/internal/model"
)

// TestNewFormatter tests tracker URL handling.
func TestNewFormatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty uses default", "", DefaultTrackerURL},
		{"trailing slash is trimmed", "https://bugzilla.example.org/", "https://bugzilla.example.org"},
		{"plain url is kept", "https://bugzilla.example.org", "https://bugzilla.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NewFormatter(tt.input).TrackerURL(); got != tt.want {
				t.Errorf("TrackerURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestBugLink tests the link-icon column.
func TestBugLink(t *testing.T) {
	t.Parallel()

	f := NewFormatter("")
	got := f.BugLink(1234)

	want := "<a href='https://bugzilla.mozilla.org/1234'>&#x1F517;</a>"
	if got != want {
		t.Errorf("BugLink() = %q, want %q", got, want)
	}
}

// TestFormatterTable tests row to table conversion.
func TestFormatterTable(t *testing.T) {
	t.Parallel()

	changed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := []model.ReportRow{
		{
			ID:             100,
			Test:           "browser_ext_tabs.js",
			Status:         "NEW",
			Priority:       "P2",
			DisabledOn:     "Windows",
			CorePlatform:   true,
			Whiteboard:     "[test disabled]",
			AssignedTo:     "alice",
			SeeAlso:        []string{"https://bugzilla.mozilla.org/show_bug.cgi?id=99"},
			LastChangeTime: changed,
		},
		{
			ID:         101,
			Test:       "summary text",
			Status:     "NEW",
			Priority:   "P3",
			DisabledOn: model.Placeholder,
			Whiteboard: "disabled",
			AssignedTo: model.Placeholder,
		},
	}

	table := NewFormatter("").Table(rows)

	if len(table.Columns) != 10 {
		t.Fatalf("expected 10 columns, got %d", len(table.Columns))
	}
	if table.Columns[0] != model.ColumnLink || table.Columns[9] != model.ColumnLastChangeTime {
		t.Errorf("unexpected column order: %v", table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}

	first := table.Rows[0]
	if len(first) != len(table.Columns) {
		t.Fatalf("expected %d cells, got %d", len(table.Columns), len(first))
	}
	if !first[0].HTML || !strings.Contains(first[0].Value, "/100'") {
		t.Errorf("expected link cell for bug 100, got %+v", first[0])
	}
	if first[1].Value != "browser_ext_tabs.js" || first[1].HTML {
		t.Errorf("expected plain test cell, got %+v", first[1])
	}
	if !strings.Contains(first[4].Value, "background: red") {
		t.Errorf("expected red disabled-on cell, got %q", first[4].Value)
	}
	if first[5].Value != "True" {
		t.Errorf("expected core platform True, got %q", first[5].Value)
	}
	if !strings.Contains(first[8].Value, ">99</a>") {
		t.Errorf("expected see also anchor labeled 99, got %q", first[8].Value)
	}
	if first[9].Value != "2024-01-02 03:04:05" {
		t.Errorf("expected formatted last change time, got %q", first[9].Value)
	}

	second := table.Rows[1]
	if !strings.Contains(second[4].Value, "background: yellow") {
		t.Errorf("expected yellow disabled-on cell, got %q", second[4].Value)
	}
	if second[5].Value != "False" {
		t.Errorf("expected core platform False, got %q", second[5].Value)
	}
	if second[8].Value != "" {
		t.Errorf("expected empty see also cell, got %q", second[8].Value)
	}
	if second[9].Value != model.Placeholder {
		t.Errorf("expected placeholder for unknown change time, got %q", second[9].Value)
	}
}
