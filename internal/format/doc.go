// Package format implements the per-column cell formatting of the report.
//
// The functions here are pure: they classify a "Disabled on" value, turn
// see-also links into anchors, highlight platform cells, and normalize
// assignee addresses. Formatter ties them to a tracker base URL and turns
// report rows into a model.Table.
package format
