package domain

import (
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery describes a post listing request as received from a client.
type ListQuery struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

// Normalize clamps paging values and trims filters. Both the cache key
// and the database query are derived from the normalized form, so two
// requests that yield the same result map to the same key.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Skip is the number of rows preceding the requested page.
func (q ListQuery) Skip() int {
	return (q.Page - 1) * q.Limit
}

// Filter extracts the predicate part of the query.
func (q ListQuery) Filter() PostFilter {
	return PostFilter{Category: q.Category, Search: q.Search}
}

// PostFilter selects posts. Category matches exactly; Search matches a
// case-insensitive substring of the title or the content.
type PostFilter struct {
	Category string
	Search   string
}

// PageCount returns ceil(total/limit).
func PageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
