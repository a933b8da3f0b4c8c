package dataverse

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultTop = 10
	// MaxTop is the largest row limit the Web API honours for one query.
	MaxTop = 5000
)

// Query describes one retrieval against a physical collection.
type Query struct {
	Top     int
	OrderBy string
	// Select projects columns; empty returns every column.
	Select []string
	// Filter is appended verbatim after the structured options. It must come
	// from trusted configuration, never from request input.
	Filter string
}

// BuildQuery renders the relative request path for q, e.g.
// "jdas_marketinsights?$select=a,b&$orderby=createdon%20desc&$top=10".
func BuildQuery(collection string, q Query) string {
	var parts []string

	var cols []string
	for _, c := range q.Select {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, escape(c))
		}
	}
	if len(cols) > 0 {
		parts = append(parts, "$select="+strings.Join(cols, ","))
	}

	if order := strings.TrimSpace(q.OrderBy); order != "" {
		parts = append(parts, "$orderby="+escape(order))
	}

	top := q.Top
	if top <= 0 {
		top = DefaultTop
	}
	if top > MaxTop {
		top = MaxTop
	}
	parts = append(parts, "$top="+strconv.Itoa(top))

	if f := strings.TrimLeft(strings.TrimSpace(q.Filter), "?&"); f != "" {
		parts = append(parts, strings.ReplaceAll(f, " ", "%20"))
	}

	return collection + "?" + strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
