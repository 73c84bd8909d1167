package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/webext-qa/intermittents/internal/model"
)

const (
	// DefaultProfile is the profile built when none is named.
	DefaultProfile = "default"

	// DefaultNotesFile is the notes spreadsheet of the built-in profile.
	DefaultNotesFile = "notes.csv"
)

// TrackerConfig is the tracker section of the config file.
type TrackerConfig struct {
	URL        string        `yaml:"url,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	Proxy      string        `yaml:"proxy,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Unassigned string        `yaml:"nobody,omitempty"`
	PageSize   int           `yaml:"page_size,omitempty"`
}

// Profile selects a notes file and a tracker search.
type Profile struct {
	// Notes is the notes spreadsheet path.
	Notes string `yaml:"notes,omitempty"`

	// Product is the tracker product.
	Product string `yaml:"product,omitempty"`

	// Components restricts the search. Empty searches the whole product.
	Components []string `yaml:"components,omitempty"`

	// Keywords must all be set on a bug.
	Keywords string `yaml:"keywords,omitempty"`

	// Whiteboard must be contained in the status whiteboard.
	Whiteboard string `yaml:"whiteboard,omitempty"`

	// OpenOnly restricts the search to unresolved bugs. Nil inherits.
	OpenOnly *bool `yaml:"open_only,omitempty"`
}

// File is the structure of the .intermittents.yaml config file.
type File struct {
	// Tracker configures the Bugzilla instance.
	Tracker TrackerConfig `yaml:"tracker,omitempty"`

	// Defaults is merged under every named profile.
	Defaults Profile `yaml:"defaults,omitempty"`

	// Profiles maps profile names to their settings.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// BuiltinProfile returns the WebExtensions disabled-intermittents profile.
func BuiltinProfile() Profile {
	f := model.DefaultFilter()
	open := f.OpenOnly
	return Profile{
		Notes:      DefaultNotesFile,
		Product:    f.Product,
		Components: f.Components,
		Keywords:   f.Keywords,
		Whiteboard: f.Whiteboard,
		OpenOnly:   &open,
	}
}

// Profile returns the named profile merged over the file defaults and the
// built-in profile. DefaultProfile is always available; any other name
// must be configured. A nil File yields the built-in profile.
func (cf *File) Profile(name string) (Profile, error) {
	result := BuiltinProfile()
	if cf == nil {
		if name != DefaultProfile {
			return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
		}
		return result, nil
	}

	result = result.merge(cf.Defaults)

	p, ok := cf.Profiles[name]
	if !ok && name != DefaultProfile {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return result.merge(p), nil
}

// ProfileNames returns the configured profile names in sorted order, or
// DefaultProfile alone when none are configured.
func (cf *File) ProfileNames() []string {
	if cf == nil || len(cf.Profiles) == 0 {
		return []string{DefaultProfile}
	}
	names := make([]string, 0, len(cf.Profiles))
	for name := range cf.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// merge returns p with the non-empty fields of over applied.
func (p Profile) merge(over Profile) Profile {
	if over.Notes != "" {
		p.Notes = over.Notes
	}
	if over.Product != "" {
		p.Product = over.Product
	}
	if len(over.Components) > 0 {
		p.Components = slices.Clone(over.Components)
	}
	if over.Keywords != "" {
		p.Keywords = over.Keywords
	}
	if over.Whiteboard != "" {
		p.Whiteboard = over.Whiteboard
	}
	if over.OpenOnly != nil {
		v := *over.OpenOnly
		p.OpenOnly = &v
	}
	return p
}

// Filter returns the tracker search of the profile.
func (p Profile) Filter() model.Filter {
	return model.Filter{
		Product:    p.Product,
		Components: slices.Clone(p.Components),
		Keywords:   p.Keywords,
		Whiteboard: p.Whiteboard,
		OpenOnly:   p.OpenOnly == nil || *p.OpenOnly,
	}
}

// Validate checks that the profile can be built.
func (p Profile) Validate() error {
	if p.Notes == "" {
		return ErrNoNotesFile
	}
	if p.Product == "" {
		return ErrNoProduct
	}
	return nil
}
