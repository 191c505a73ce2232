package catalog

import (
	"fmt"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// cacheKey derives the deterministic cache key for an operation and its
// normalized arguments.
func cacheKey(op string, parts ...string) string {
	if len(parts) == 0 {
		return op
	}
	return op + ":" + strings.Join(parts, ":")
}

// categoriesKeyPart normalizes a category-name argument list: sorted, each
// name length-prefixed so the encoding is injective. A plain join would let a
// category literally named "all" alias the unfiltered key, or ["A,B"] alias
// ["A","B"]. Every encoded name starts with a digit, so "*" is safe as the
// unfiltered marker.
func categoriesKeyPart(categories []string) string {
	if len(categories) == 0 {
		return "*"
	}
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)
	var sb strings.Builder
	for _, c := range sorted {
		fmt.Fprintf(&sb, "%d#%s", len(c), c)
	}
	return sb.String()
}

// cached looks a typed value up; a stale or missing entry reads as absent.
func cached[T any](c *gocache.Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
