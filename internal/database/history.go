package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/webext-qa/intermittents/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "intermittents.db"

var (
	// ErrRunNotFound is returned when no run has the requested id.
	ErrRunNotFound = errors.New("run not found")

	// ErrFailedRun is returned when saving a report whose run failed.
	ErrFailedRun = errors.New("refusing to store a failed run")
)

// HistoryDB stores successful report runs in SQLite.
type HistoryDB struct {
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per successful report run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		digest TEXT NOT NULL,
		notes_loaded INTEGER NOT NULL DEFAULT 0,
		bugs_fetched INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_profile ON runs(profile, generated_at);

	-- Report rows of each run, in rendered order
	CREATE TABLE IF NOT EXISTS run_rows (
		run_id TEXT NOT NULL,
		bug_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		row_json TEXT NOT NULL,
		PRIMARY KEY (run_id, bug_id)
	);

	CREATE INDEX IF NOT EXISTS idx_run_rows_bug ON run_rows(bug_id);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Run is the stored metadata of one report run.
type Run struct {
	ID          string    `json:"id"`
	Profile     string    `json:"profile"`
	GeneratedAt time.Time `json:"generated_at"`
	Digest      string    `json:"digest"`
	NotesLoaded int       `json:"notes_loaded"`
	BugsFetched int       `json:"bugs_fetched"`
	RowCount    int       `json:"row_count"`
}

// SaveRun stores a successful report and its rows in one transaction.
// A report without a run id is given a new one.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.Report) (*Run, error) {
	if report.Error != nil || report.ErrorMessage != "" {
		return nil, ErrFailedRun
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}

	run := &Run{
		ID:          report.RunID,
		Profile:     report.Profile,
		GeneratedAt: report.GeneratedAt.UTC(),
		Digest:      report.Digest(),
		NotesLoaded: report.NotesLoaded,
		BugsFetched: report.BugsFetched,
		RowCount:    len(report.Rows),
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, profile, generated_at, digest, notes_loaded, bugs_fetched, row_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Profile,
		formatTimestamp(run.GeneratedAt),
		run.Digest,
		run.NotesLoaded,
		run.BugsFetched,
		run.RowCount,
		string(reportJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_rows (run_id, bug_id, position, row_json)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(run_id, bug_id) DO UPDATE SET position = excluded.position, row_json = excluded.row_json
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range report.Rows {
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize row %d: %w", row.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, row.ID, i, string(rowJSON)); err != nil {
			return nil, fmt.Errorf("failed to save row %d: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

const runColumns = `id, profile, generated_at, digest, notes_loaded, bugs_fetched, row_count`

func scanRun(scan func(dest ...any) error) (Run, error) {
	var run Run
	var generatedAt string
	if err := scan(&run.ID, &run.Profile, &generatedAt, &run.Digest,
		&run.NotesLoaded, &run.BugsFetched, &run.RowCount); err != nil {
		return Run{}, err
	}
	run.GeneratedAt = parseTimestamp(generatedAt)
	return run, nil
}

// ListRuns returns stored runs newest first. An empty profile lists the
// runs of every profile; a non-positive limit lists all of them.
func (h *HistoryDB) ListRuns(ctx context.Context, profile string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if profile != "" {
		query += ` WHERE profile = ?`
		args = append(args, profile)
	}
	query += ` ORDER BY generated_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns the metadata of one run.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetReport returns the stored report of one run. Its Table is nil and
// is rebuilt from the rows by the writers.
func (h *HistoryDB) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetRunRows returns the rows of one run in rendered order.
func (h *HistoryDB) GetRunRows(ctx context.Context, id string) ([]model.ReportRow, error) {
	if _, err := h.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT row_json FROM run_rows
	WHERE run_id = ?
	ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run rows: %w", err)
	}
	defer rows.Close()

	result := []model.ReportRow{}
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var r model.ReportRow
		if err := json.Unmarshal([]byte(rowJSON), &r); err != nil {
			return nil, fmt.Errorf("failed to parse row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListProfiles returns every profile with at least one stored run, sorted.
func (h *HistoryDB) ListProfiles(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT profile FROM runs ORDER BY profile`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// BugRuns returns the runs of a profile whose report contained the bug,
// newest first.
func (h *HistoryDB) BugRuns(ctx context.Context, profile string, bugID int) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT r.id, r.profile, r.generated_at, r.digest, r.notes_loaded, r.bugs_fetched, r.row_count
	FROM runs r
	JOIN run_rows rr ON rr.run_id = r.id
	WHERE r.profile = ? AND rr.bug_id = ?
	ORDER BY r.generated_at DESC, r.rowid DESC
	`, profile, bugID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bug runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes all but the newest keep runs of a profile and returns
// how many runs were deleted.
func (h *HistoryDB) Prune(ctx context.Context, profile string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stale := `
	SELECT id FROM runs WHERE profile = ?
	ORDER BY generated_at DESC, rowid DESC
	LIMIT -1 OFFSET ?
	`
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_rows WHERE run_id IN (`+stale+`)`, profile, keep); err != nil {
		return 0, fmt.Errorf("failed to prune rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, profile, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return n, nil
}

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
