package model

import "time"

// Bug is a read-only snapshot of a tracker bug as returned by a search.
// The JSON tags match the field names of the Bugzilla REST API so that
// search results decode directly into this type.
type Bug struct {
	// ID is the tracker bug number.
	ID int `json:"id"`

	// Summary is the one-line bug title.
	Summary string `json:"summary"`

	// Status is the bug workflow status (NEW, ASSIGNED, REOPENED, ...).
	Status string `json:"status"`

	// Priority is the triage priority (P1..P5, or "--" when untriaged).
	Priority string `json:"priority"`

	// Whiteboard is the free-text status whiteboard.
	Whiteboard string `json:"whiteboard"`

	// AssignedTo is the assignee email address.
	AssignedTo string `json:"assigned_to"`

	// SeeAlso holds related URLs in tracker order.
	SeeAlso []string `json:"see_also"`

	// LastChangeTime is when the bug was last modified.
	LastChangeTime time.Time `json:"last_change_time"`
}

// Filter selects which bugs are fetched from the tracker.
type Filter struct {
	// Product is the tracker product name.
	Product string `json:"product"`

	// Components restricts the search to these components.
	// An empty list searches every component of the product.
	Components []string `json:"components,omitempty"`

	// Keywords must all be present on a matching bug.
	Keywords string `json:"keywords,omitempty"`

	// Whiteboard must be contained in the bug's status whiteboard.
	Whiteboard string `json:"whiteboard,omitempty"`

	// OpenOnly restricts the search to unresolved bugs.
	OpenOnly bool `json:"open_only"`
}

// DefaultComponents is the WebExtensions component allow-list searched
// when no profile overrides it.
var DefaultComponents = []string{
	"WebExtensions: Android",
	"WebExtensions: Compatibility",
	"WebExtensions: Developer Tools",
	"WebExtensions: Experiments",
	"WebExtensions: Frontend",
	"WebExtensions: General",
	"WebExtensions: Request Handling",
	"WebExtensions: Storage",
	"WebExtensions: Themes",
	"WebExtensions: Untriaged",
}

// DefaultProduct is the tracker product of the built-in search. Bugzilla
// matches product names case-insensitively; this is the spelling the
// report has always queried with.
const DefaultProduct = "toolkit"

// DefaultFilter returns the search for open, disabled intermittent
// failures in the Toolkit WebExtensions components.
func DefaultFilter() Filter {
	components := make([]string, len(DefaultComponents))
	copy(components, DefaultComponents)

	return Filter{
		Product:    DefaultProduct,
		Components: components,
		Keywords:   "intermittent-failure",
		Whiteboard: "disabled",
		OpenOnly:   true,
	}
}
