package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "intermittents"

	// DefaultTrackerURL is the Bugzilla instance queried by default.
	DefaultTrackerURL = "https://bugzilla.mozilla.org"

	// DefaultUnassigned is the tracker's placeholder assignee address.
	DefaultUnassigned = "nobody@mozilla.org"

	// DefaultTimeout bounds the tracker search of one run.
	DefaultTimeout = 60 * time.Second

	// DefaultPageSize is the number of bugs requested per search page.
	DefaultPageSize = 500

	// DefaultConcurrency is the number of profiles built at once with --all.
	DefaultConcurrency = 4

	// DefaultUserAgent identifies the tool in tracker requests.
	DefaultUserAgent = "intermittents (+https://github.com/webext-qa/intermittents)"
)

// Report formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

// Formats lists the supported report formats.
var Formats = []string{FormatHTML, FormatMarkdown, FormatJSON, FormatText}

// Config holds the options of a report run. It is filled from the config
// file, the environment and CLI flags, and passed down explicitly.
type Config struct {
	// TrackerURL is the Bugzilla base URL.
	TrackerURL string

	// APIKey authenticates tracker requests. Optional for public bugs.
	APIKey string

	// Proxy is an optional SOCKS5 proxy in host:port form.
	Proxy string

	// Timeout bounds the tracker search of one run.
	Timeout time.Duration

	// Unassigned is the assignee address the tracker uses for nobody.
	Unassigned string

	// PageSize is the number of bugs requested per search page.
	PageSize int

	// UserAgent is sent with tracker requests.
	UserAgent string

	// Profile is the profile to build. Ignored when All is set.
	Profile string

	// Profiles holds the profiles loaded from the config file.
	// It may be nil when no file was found.
	Profiles *File

	// NotesPath overrides the notes file of the selected profile.
	NotesPath string

	// Format is the report format (html, markdown, json, text).
	Format string

	// Standalone wraps HTML output in a complete document.
	Standalone bool

	// OutputPath is the report file. Empty means stdout.
	OutputPath string

	// OutputDir receives one report per profile when All is set.
	// Empty means stdout.
	OutputDir string

	// All builds every configured profile.
	All bool

	// Concurrency is the number of profiles built at once with All.
	Concurrency int

	// Watch rebuilds the report whenever the notes file changes.
	Watch bool

	// SaveHistory stores successful runs in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit config file, if any.
	ConfigFilePath string
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		TrackerURL:  DefaultTrackerURL,
		Timeout:     DefaultTimeout,
		Unassigned:  DefaultUnassigned,
		PageSize:    DefaultPageSize,
		UserAgent:   DefaultUserAgent,
		Profile:     DefaultProfile,
		Format:      FormatHTML,
		Concurrency: DefaultConcurrency,
		SaveHistory: true,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the data directory holding the history database.
// On Linux: ~/.local/share/intermittents
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory searched for the config file.
// On Linux: ~/.config/intermittents
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile copies the tracker settings of f into c. Empty file values
// leave c unchanged.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.Profiles = f

	t := f.Tracker
	if t.URL != "" {
		c.TrackerURL = t.URL
	}
	if t.APIKey != "" {
		c.APIKey = t.APIKey
	}
	if t.Proxy != "" {
		c.Proxy = t.Proxy
	}
	if t.Timeout > 0 {
		c.Timeout = t.Timeout
	}
	if t.Unassigned != "" {
		c.Unassigned = t.Unassigned
	}
	if t.PageSize > 0 {
		c.PageSize = t.PageSize
	}
}

// ResolveProfile returns the named profile with the NotesPath override
// applied.
func (c *Config) ResolveProfile(name string) (Profile, error) {
	p, err := c.Profiles.Profile(name)
	if err != nil {
		return Profile{}, err
	}
	if c.NotesPath != "" {
		p.Notes = c.NotesPath
	}
	return p, nil
}

// ProfileNames returns the profiles a run builds: every configured
// profile when All is set, otherwise the selected one.
func (c *Config) ProfileNames() []string {
	if c.All {
		return c.Profiles.ProfileNames()
	}
	return []string{c.Profile}
}

// Validate checks the configuration. The first problem found is returned.
func (c *Config) Validate() error {
	u, err := url.Parse(c.TrackerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTrackerURL
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if !isFormat(c.Format) {
		return ErrUnknownFormat
	}

	if c.Standalone && c.Format != FormatHTML {
		return ErrConflictingFormats
	}

	if c.All && c.OutputPath != "" {
		return ErrConflictingOutput
	}

	if c.All && c.Watch {
		return ErrConflictingWatch
	}

	if c.All && c.NotesPath != "" {
		return ErrConflictingNotes
	}

	for _, name := range c.ProfileNames() {
		p, err := c.ResolveProfile(name)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}
