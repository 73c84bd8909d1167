package format

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/webext-qa/intermittents/internal/model"
)

// Tracker defaults.
const (
	// DefaultTrackerURL is the Bugzilla instance queried by default.
	DefaultTrackerURL = "https://bugzilla.mozilla.org"

	// DefaultUnassigned is the address the tracker uses for unassigned bugs.
	DefaultUnassigned = "nobody@mozilla.org"
)

// Highlight styles for the "Disabled on" column.
const (
	corePlatformStyle = "background: red; color: white; padding: 2px;"
	unspecifiedStyle  = "background: yellow;"
)

// IsCorePlatform reports whether a "Disabled on" value affects Windows or
// all platforms. The match is a case-insensitive substring match, so
// "Windows 10", "ALL" and "all debug builds" all qualify.
func IsCorePlatform(disabledOn string) bool {
	folded := cases.Fold().String(disabledOn)
	return strings.Contains(folded, "windows") || strings.Contains(folded, "all")
}

// DisabledOn highlights a "Disabled on" cell. Core platform values get a
// red bold tag, the unspecified placeholder gets a yellow bold tag, and
// anything else is returned as is (HTML-escaped).
func DisabledOn(text string) string {
	escaped := html.EscapeString(text)
	switch {
	case IsCorePlatform(text):
		return bold(corePlatformStyle, escaped)
	case text == model.Placeholder:
		return bold(unspecifiedStyle, escaped)
	default:
		return escaped
	}
}

func bold(style, content string) string {
	return fmt.Sprintf("<b style='%s'>%s</b>", style, content)
}

// Assignee normalizes an assignee address. The tracker's unassigned
// placeholder becomes model.Placeholder; any other address is reduced to
// the part before "@".
func Assignee(email, unassigned string) string {
	if email == unassigned {
		return model.Placeholder
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// SeeAlso formats see-also links against the default tracker.
func SeeAlso(links []string) string {
	return NewFormatter(DefaultTrackerURL).SeeAlso(links)
}

// anchor renders a link with the given label.
func anchor(href, label string) string {
	return fmt.Sprintf("<a href='%s'>%s</a>", html.EscapeString(href), html.EscapeString(label))
}

// bugIDFromViewURL extracts the id query parameter of a show_bug.cgi URL.
func bugIDFromViewURL(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	id := u.Query().Get("id")
	return id, id != ""
}
