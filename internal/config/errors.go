package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Profile.Validate.
var (
	// ErrNoNotesFile is returned when a run has no notes spreadsheet.
	ErrNoNotesFile = errors.New("no notes file specified: use --notes or set notes in the profile")

	// ErrInvalidTimeout is returned when the tracker timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPageSize is returned when the tracker page size is not positive.
	ErrInvalidPageSize = errors.New("invalid page size: must be positive")

	// ErrInvalidConcurrency is returned when --concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTrackerURL is returned when the tracker URL is not an
	// absolute http or https URL.
	ErrInvalidTrackerURL = errors.New("invalid tracker url: must be an absolute http or https url")

	// ErrNoProduct is returned when a profile does not name a tracker product.
	ErrNoProduct = errors.New("no product specified in profile")

	// ErrUnknownProfile is returned when a named profile is not configured.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrUnknownFormat is returned for an unsupported --format value.
	ErrUnknownFormat = errors.New("unknown report format: must be html, markdown, json or text")

	// ErrConflictingFormats is returned when --standalone is combined with
	// a format other than html.
	ErrConflictingFormats = errors.New("conflicting report formats: --standalone only applies to html")

	// ErrConflictingOutput is returned when --output is combined with --all.
	ErrConflictingOutput = errors.New("conflicting outputs: use --output-dir instead of --output with --all")

	// ErrConflictingNotes is returned when --notes is combined with --all.
	// Each profile reads its own notes file.
	ErrConflictingNotes = errors.New("conflicting options: --notes selects one profile's notes file and cannot be combined with --all")

	// ErrConflictingWatch is returned when --watch is combined with --all.
	ErrConflictingWatch = errors.New("conflicting options: --watch builds a single profile and cannot be combined with --all")
)
