package postcache

import (
	"net/url"
	"strconv"

	"github.com/adeilh/scribe/domain"
)

// ListingPrefix starts every listing key. ListingPattern matches all of
// them and nothing else, so a single pattern purge drops every cached page.
const (
	ListingPrefix  = "posts:"
	ListingPattern = ListingPrefix + "*"
)

// EntityPost is the entity type used in single-post keys.
const EntityPost = "post"

// ListingKey derives the cache key of a listing page. The query is
// normalized first and its fields are query-escaped, so equal requests
// share a key and values containing separators cannot collide.
func ListingKey(q domain.ListQuery) string {
	q = q.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("category", q.Category)
	v.Set("search", q.Search)
	return ListingPrefix + v.Encode()
}

// EntityKey derives the key of a single entity, e.g. "post:id:42".
func EntityKey(entityType, id string) string {
	return entityType + ":id:" + url.PathEscape(id)
}

// PostKey is EntityKey for posts.
func PostKey(id string) string {
	return EntityKey(EntityPost, id)
}
