package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// UncategorizedName is assigned to any product whose reconciled membership
// would otherwise be empty, so every product has at least one category.
const UncategorizedName = "Non classé"

// homeCategory is a landing-page pseudo-category, excluded (case-insensitively)
// from every listing and count.
const homeCategory = "accueil"

// ProductCategories carries both physical sources of category truth for one
// product: the join-table names and the denormalized comma-separated column.
type ProductCategories struct {
	ProductID string
	JoinNames []string
	Text      string
}

// IsHomeCategory reports whether a name is the excluded landing category.
func IsHomeCategory(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), homeCategory)
}

// ParseCategoryList splits the denormalized text column: comma-separated,
// whitespace-trimmed, empty segments dropped.
func ParseCategoryList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			names = append(names, t)
		}
	}
	return names
}

// Membership merges the two sources into one deduplicated, sorted set of
// category names. Matching is case-sensitive: "Bacs" and "bacs" are distinct.
// An empty union resolves to the sentinel category.
func Membership(joinNames []string, text string) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		if n == "" || IsHomeCategory(n) {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, n := range joinNames {
		add(strings.TrimSpace(n))
	}
	for _, n := range ParseCategoryList(text) {
		add(n)
	}
	if len(names) == 0 {
		return []string{UncategorizedName}
	}
	sort.Strings(names)
	return names
}

// Counts computes the distinct product count per category name across both
// sources. A product referenced by a category through the join table and the
// text column counts once; totals are set unions, never sums.
func Counts(items []ProductCategories) map[string]int {
	byCategory := make(map[string]map[string]struct{})
	for _, item := range items {
		for _, name := range sourceUnion(item) {
			if byCategory[name] == nil {
				byCategory[name] = make(map[string]struct{})
			}
			byCategory[name][item.ProductID] = struct{}{}
		}
	}
	counts := make(map[string]int, len(byCategory))
	for name, ids := range byCategory {
		counts[name] = len(ids)
	}
	return counts
}

// MatchesFilter is the hybrid OR predicate: a product matches the requested
// set when its join-table name is in the set or any trimmed segment of its
// text column is. A single-source check would silently drop products.
func MatchesFilter(requested []string, joinNames []string, text string) bool {
	if len(requested) == 0 {
		return true
	}
	want := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		want[r] = struct{}{}
	}
	for _, n := range joinNames {
		if _, ok := want[strings.TrimSpace(n)]; ok {
			return true
		}
	}
	for _, n := range ParseCategoryList(text) {
		if _, ok := want[n]; ok {
			return true
		}
	}
	return false
}

// UniqueCount returns the number of distinct products matching the hybrid
// filter, not the sum of per-category counts.
func UniqueCount(items []ProductCategories, requested []string) int {
	ids := make(map[string]struct{})
	for _, item := range items {
		if MatchesFilter(requested, item.JoinNames, item.Text) {
			ids[item.ProductID] = struct{}{}
		}
	}
	return len(ids)
}

// FilterClause builds the SQL fragment encoding the same hybrid OR for
// query-level filtering, so in-memory and SQL call sites cannot diverge in
// meaning. The fragment expects the requested names as a single text-array
// parameter numbered argIndex and assumes the products relation is aliased p.
func FilterClause(argIndex int) string {
	return fmt.Sprintf(`(EXISTS (
		SELECT 1 FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = p.id AND c.name = ANY($%d)
	) OR EXISTS (
		SELECT 1 FROM unnest(string_to_array(COALESCE(p.categorie, ''), ',')) AS seg
		WHERE btrim(seg) = ANY($%d)
	))`, argIndex, argIndex)
}

// sourceUnion is Membership without the sentinel: only names actually present
// in either source, for counting and listing.
func sourceUnion(item ProductCategories) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, n := range item.JoinNames {
		n = strings.TrimSpace(n)
		if n == "" || IsHomeCategory(n) {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	for _, n := range ParseCategoryList(item.Text) {
		if IsHomeCategory(n) {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return names
}
