package notes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/webext-qa/intermittents/internal/model"
)

// Spreadsheet column headers.
const (
	ColumnBugNumber  = "Bug Number"
	ColumnTest       = "Test"
	ColumnDisabledOn = "Disabled on"
)

const byteOrderMark = "\ufeff"

// Load reads the notes file at path.
// Errors are *LoadError values wrapping ErrLoad.
func Load(path string) (map[int]model.Note, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	notes, err := Parse(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return notes, nil
}

// Parse reads notes from CSV data. A later row for the same bug number
// replaces an earlier one. Blank rows are skipped.
func Parse(r io.Reader) (map[int]model.Note, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Line: 1, Err: fmt.Errorf("%w: %q (empty file)", ErrMissingColumn, ColumnBugNumber)}
		}
		return nil, &LoadError{Err: err}
	}
	cols := indexColumns(header)

	idCol, ok := cols[ColumnBugNumber]
	if !ok {
		return nil, &LoadError{Line: 1, Err: fmt.Errorf("%w: %q", ErrMissingColumn, ColumnBugNumber)}
	}
	testCol, hasTest := cols[ColumnTest]
	disabledCol, hasDisabled := cols[ColumnDisabledOn]

	notes := make(map[int]model.Note)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &LoadError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &LoadError{Err: err}
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		id, err := parseBugNumber(field(record, idCol))
		if err != nil {
			return nil, &LoadError{Line: line, Err: err}
		}

		note := model.Note{BugID: id}
		if hasTest {
			note.TestName = field(record, testCol)
		}
		if hasDisabled {
			note.DisabledOn = field(record, disabledCol)
		}
		notes[id] = note
	}
	return notes, nil
}

// indexColumns maps header names to their column index. The first
// occurrence of a duplicated header wins.
func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, byteOrderMark)
		}
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseBugNumber accepts integers and integral floats ("1234.0"), which
// spreadsheet exports produce for numeric columns with gaps.
func parseBugNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidBugNumber)
	}
	if id, err := strconv.Atoi(s); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidBugNumber, s)
		}
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f <= 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBugNumber, s)
	}
	return int(f), nil
}
