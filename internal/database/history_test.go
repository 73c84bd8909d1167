package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/webext-qa/intermittents/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

var baseTime = time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC)

// newTestReport creates a successful report with the given rows.
func newTestReport(id, profile string, at time.Time, rows ...model.ReportRow) *model.Report {
	r := model.NewReport(profile)
	r.RunID = id
	r.GeneratedAt = at
	r.NotesLoaded = 2
	r.BugsFetched = len(rows)
	r.Rows = rows
	return r
}

func row(id int, priority string) model.ReportRow {
	return model.ReportRow{
		ID:             id,
		Test:           "test_" + priority,
		Status:         "NEW",
		Priority:       priority,
		DisabledOn:     "Linux",
		Whiteboard:     "[disabled]",
		AssignedTo:     model.Placeholder,
		SeeAlso:        []string{},
		LastChangeTime: baseTime.Add(-time.Duration(id) * time.Hour),
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db1.SaveRun(t.Context(), newTestReport("run-1", "default", baseTime, row(1, "P1"))); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		if _, err := db2.GetRun(t.Context(), "run-1"); err != nil {
			t.Errorf("expected stored run to persist: %v", err)
		}
	})
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("stores metadata and rows", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := t.Context()

		report := newTestReport("run-1", "default", baseTime, row(2, "P2"), row(1, "P1"))
		saved, err := db.SaveRun(ctx, report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := db.GetRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(saved, got); diff != "" {
			t.Errorf("stored run mismatch (-saved +got):\n%s", diff)
		}
		if got.Digest != report.Digest() || got.RowCount != 2 || got.NotesLoaded != 2 {
			t.Errorf("unexpected run metadata: %+v", got)
		}
		if !got.GeneratedAt.Equal(baseTime) {
			t.Errorf("expected generated_at %v, got %v", baseTime, got.GeneratedAt)
		}

		rows, err := db.GetRunRows(ctx, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(report.Rows, rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("assigns a run id", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := newTestReport("", "default", baseTime)
		run, err := db.SaveRun(t.Context(), report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.ID == "" || report.RunID != run.ID {
			t.Errorf("expected generated run id on both, got run %q report %q", run.ID, report.RunID)
		}
	})

	t.Run("refuses failed runs", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := newTestReport("run-1", "default", baseTime)
		report.Error = errors.New("fetch failed")
		report.ErrorMessage = "fetch failed"

		if _, err := db.SaveRun(t.Context(), report); !errors.Is(err, ErrFailedRun) {
			t.Fatalf("expected ErrFailedRun, got %v", err)
		}
		runs, err := db.ListRuns(t.Context(), "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("expected no stored runs, got %d", len(runs))
		}
	})

	t.Run("duplicate run id fails", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if _, err := db.SaveRun(t.Context(), newTestReport("run-1", "default", baseTime)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := db.SaveRun(t.Context(), newTestReport("run-1", "default", baseTime)); err == nil {
			t.Error("expected error for duplicate run id")
		}
	})
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	for i, r := range []struct{ id, profile string }{
		{"a1", "default"},
		{"b1", "android"},
		{"a2", "default"},
		{"a3", "default"},
	} {
		at := baseTime.Add(time.Duration(i) * time.Minute)
		if _, err := db.SaveRun(ctx, newTestReport(r.id, r.profile, at)); err != nil {
			t.Fatalf("failed to save %s: %v", r.id, err)
		}
	}

	ids := func(runs []Run) []string {
		out := []string{}
		for _, r := range runs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		profile string
		limit   int
		want    []string
	}{
		{name: "all profiles newest first", want: []string{"a3", "a2", "b1", "a1"}},
		{name: "one profile", profile: "default", want: []string{"a3", "a2", "a1"}},
		{name: "limited", profile: "default", limit: 2, want: []string{"a3", "a2"}},
		{name: "unknown profile", profile: "desktop", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runs, err := db.ListRuns(ctx, tt.profile, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(runs)); diff != "" {
				t.Errorf("runs mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("profiles", func(t *testing.T) {
		t.Parallel()

		profiles, err := db.ListProfiles(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"android", "default"}, profiles); diff != "" {
			t.Errorf("profiles mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.GetReport(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetReport: expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.GetRunRows(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRunRows: expected ErrRunNotFound, got %v", err)
	}
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	report := newTestReport("run-1", "default", baseTime, row(1, "P1"))
	report.TrackerURL = "https://bugzilla.mozilla.org"
	report.Filter = model.Filter{Product: "Toolkit", OpenOnly: true}
	if _, err := db.SaveRun(ctx, report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetReport(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Profile != "default" || got.TrackerURL != report.TrackerURL || got.Filter.Product != "Toolkit" {
		t.Errorf("unexpected report: %+v", got)
	}
	if got.Caption() != report.Caption() {
		t.Errorf("expected caption %q, got %q", report.Caption(), got.Caption())
	}
	if got.Digest() != report.Digest() {
		t.Error("expected stored report to keep its digest")
	}
}

func TestBugRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	reports := []*model.Report{
		newTestReport("r1", "default", baseTime, row(1, "P1"), row(2, "P2")),
		newTestReport("r2", "default", baseTime.Add(time.Minute), row(2, "P2")),
		newTestReport("r3", "android", baseTime.Add(2*time.Minute), row(1, "P1")),
	}
	for _, r := range reports {
		if _, err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save %s: %v", r.RunID, err)
		}
	}

	runs, err := db.BugRuns(ctx, "default", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("expected only r1, got %+v", runs)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := t.Context()

	for i := range 4 {
		id := string(rune('a' + i))
		if _, err := db.SaveRun(ctx, newTestReport(id, "default", baseTime.Add(time.Duration(i)*time.Minute), row(i+1, "P1"))); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}
	if _, err := db.SaveRun(ctx, newTestReport("other", "android", baseTime)); err != nil {
		t.Fatalf("failed to save other: %v", err)
	}

	n, err := db.Prune(ctx, "default", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned runs, got %d", n)
	}

	runs, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{}
	for _, r := range runs {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{"d", "c", "other"}, got); diff != "" {
		t.Errorf("remaining runs mismatch (-want +got):\n%s", diff)
	}

	if _, err := db.GetRunRows(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected pruned run to be gone, got %v", err)
	}
	if bugRuns, err := db.BugRuns(ctx, "default", 1); err != nil || len(bugRuns) != 0 {
		t.Errorf("expected pruned rows to be gone, got %v, %v", bugRuns, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "stored layout", in: "2024-05-06T07:08:09.123456000Z", want: baseTime},
		{name: "RFC3339", in: "2024-05-06T07:08:09Z", want: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		{name: "SQLite default", in: "2024-05-06 07:08:09", want: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		{name: "garbage", in: "yesterday", want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got := formatTimestamp(baseTime); got != "2024-05-06T07:08:09.123456000Z" {
		t.Errorf("unexpected stored layout %q", got)
	}
}
