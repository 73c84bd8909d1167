package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad is wrapped by every error returned from Load and Parse.
	ErrLoad = errors.New("failed to load notes")

	// ErrMissingColumn is returned when the header has no "Bug Number" column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidBugNumber is returned when a "Bug Number" cell is not a bug id.
	ErrInvalidBugNumber = errors.New("invalid bug number")
)

// LoadError describes a notes file that could not be read or parsed.
type LoadError struct {
	// Path is the notes file, empty when parsing from a reader.
	Path string

	// Line is the 1-based CSV line of the failure, or 0 when unknown.
	Line int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	where := e.Path
	if where == "" {
		where = "notes"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %v", ErrLoad, where, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrLoad, where, e.Err)
}

// Unwrap returns ErrLoad and the underlying error so that errors.Is
// matches both.
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}
