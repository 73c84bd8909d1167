package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/webext-qa/intermittents/internal/model"
)

// LastChangeLayout is the layout of the last_change_time column.
const LastChangeLayout = "2006-01-02 15:04:05"

// Formatter formats report cells for a specific tracker instance.
type Formatter struct {
	// trackerURL is the tracker base URL without a trailing slash.
	trackerURL string

	// viewPrefix is the prefix of the tracker's own bug-view links.
	viewPrefix string
}

// NewFormatter creates a Formatter for the tracker at trackerURL.
// An empty trackerURL selects DefaultTrackerURL.
func NewFormatter(trackerURL string) *Formatter {
	base := strings.TrimRight(trackerURL, "/")
	if base == "" {
		base = DefaultTrackerURL
	}
	return &Formatter{
		trackerURL: base,
		viewPrefix: base + "/show_bug.cgi?id=",
	}
}

// TrackerURL returns the tracker base URL.
func (f *Formatter) TrackerURL() string {
	return f.trackerURL
}

// BugURL returns the short link to a bug.
func (f *Formatter) BugURL(id int) string {
	return f.trackerURL + "/" + strconv.Itoa(id)
}

// BugLink renders the link-icon anchor of the first column.
func (f *Formatter) BugLink(id int) string {
	return fmt.Sprintf("<a href='%s'>&#x1F517;</a>", f.BugURL(id))
}

// SeeAlso renders see-also links as anchors joined by ", ".
// Links to this tracker's bug view are labeled with the bug id; every
// other link is labeled with its full URL. An empty list yields "".
func (f *Formatter) SeeAlso(links []string) string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		out = append(out, anchor(link, f.SeeAlsoLabel(link)))
	}
	return strings.Join(out, ", ")
}

// SeeAlsoLabel returns the label of one see-also link: the bug id for
// this tracker's bug view, the full URL otherwise.
func (f *Formatter) SeeAlsoLabel(link string) string {
	if strings.HasPrefix(link, f.viewPrefix) {
		if id, ok := bugIDFromViewURL(link); ok {
			return id
		}
	}
	return link
}

// Table formats rows into the rendered table. Rows are expected to be
// sorted and filled already.
func (f *Formatter) Table(rows []model.ReportRow) *model.Table {
	t := &model.Table{
		Columns: append([]string(nil), model.Columns...),
		Rows:    make([][]model.Cell, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []model.Cell{
			{Value: f.BugLink(r.ID), HTML: true},
			{Value: r.Test},
			{Value: r.Status},
			{Value: r.Priority},
			{Value: DisabledOn(r.DisabledOn), HTML: true},
			{Value: CorePlatformText(r.CorePlatform)},
			{Value: r.Whiteboard},
			{Value: r.AssignedTo},
			{Value: f.SeeAlso(r.SeeAlso), HTML: true},
			{Value: LastChange(r)},
		})
	}
	return t
}

// CorePlatformText renders the Core Platform flag.
func CorePlatformText(core bool) string {
	if core {
		return "True"
	}
	return "False"
}

// LastChange renders the last change time, or the placeholder when unknown.
func LastChange(r model.ReportRow) string {
	if r.LastChangeTime.IsZero() {
		return model.Placeholder
	}
	return r.LastChangeTime.UTC().Format(LastChangeLayout)
}
