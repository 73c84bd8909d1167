// Package database provides SQLite-based run history for report builds.
//
// HistoryDB stores every successful run:
//   - run metadata (id, profile, timestamp, content digest, counts)
//   - the full report as JSON
//   - the rendered rows, one per bug, so two runs can be compared
//
// The database is a single file opened with modernc.org/sqlite, which
// needs no cgo. Failed runs are never stored.
package database
