// Package bugzilla is a thin client for the Bugzilla REST search API.
//
// Only bug search is implemented: Client.FetchBugs runs a model.Filter
// against GET /rest/bug, pages through the results with limit and offset,
// and decodes them into model.Bug values. A failed request is reported as
// a *FetchError wrapping ErrFetch and is never retried.
//
// Requests may be routed through a SOCKS5 proxy (WithProxy), and an API
// key is sent in the X-BUGZILLA-API-KEY header when configured.
package bugzilla
