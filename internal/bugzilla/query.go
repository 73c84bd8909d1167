package bugzilla

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/webext-qa/intermittents/internal/model"
)

// includeFields are the bug fields requested from the tracker.
var includeFields = []string{
	"id",
	"summary",
	"status",
	"priority",
	"whiteboard",
	"assigned_to",
	"see_also",
	"last_change_time",
}

// openResolution is the resolution value of unresolved bugs.
const openResolution = "---"

// searchQuery builds the query string of one search page.
func searchQuery(f model.Filter, limit, offset int) url.Values {
	q := url.Values{}
	if f.Product != "" {
		q.Set("product", f.Product)
	}
	for _, c := range f.Components {
		q.Add("component", c)
	}
	if f.Keywords != "" {
		q.Set("keywords", f.Keywords)
		q.Set("keywords_type", "allwords")
	}
	if f.Whiteboard != "" {
		q.Set("whiteboard", f.Whiteboard)
	}
	if f.OpenOnly {
		q.Set("resolution", openResolution)
	}
	q.Set("include_fields", strings.Join(includeFields, ","))
	q.Set("order", "bug_id")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
