package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategoryList(t *testing.T) {
	assert.Equal(t, []string{"Bacs", "Potagers"}, ParseCategoryList("Bacs, Potagers"))
	assert.Equal(t, []string{"Bacs"}, ParseCategoryList("  Bacs  "))
	assert.Equal(t, []string{"Bacs", "Potagers"}, ParseCategoryList("Bacs,,Potagers,"))
	assert.Nil(t, ParseCategoryList(""))
	assert.Nil(t, ParseCategoryList("   "))
}

func TestMembership_UnionDeduplicates(t *testing.T) {
	// Join table says {A,B}, the text column says "B, C": the reconciled set
	// is exactly {A,B,C}.
	got := Membership([]string{"A", "B"}, "B, C")
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestMembership_SentinelWhenBothSourcesEmpty(t *testing.T) {
	assert.Equal(t, []string{UncategorizedName}, Membership(nil, ""))
	assert.Equal(t, []string{UncategorizedName}, Membership([]string{}, "  "))
}

func TestMembership_CaseSensitiveIdentity(t *testing.T) {
	got := Membership([]string{"Bacs"}, "bacs")
	assert.Equal(t, []string{"Bacs", "bacs"}, got, "names differing only in case are distinct")
}

func TestMembership_ExcludesHomeCategory(t *testing.T) {
	assert.Equal(t, []string{"Terrasses"}, Membership([]string{"Accueil", "Terrasses"}, "ACCUEIL"))
	// A product only on the landing page has no real category.
	assert.Equal(t, []string{UncategorizedName}, Membership([]string{"accueil"}, "Accueil"))
}

func TestCounts_DistinctAcrossSources(t *testing.T) {
	items := []ProductCategories{
		// P referenced by "X" through both sources: counts once.
		{ProductID: "p1", JoinNames: []string{"X"}, Text: "X"},
		// A second product reaches "X" through the text column only.
		{ProductID: "p2", Text: "X"},
		{ProductID: "p3", JoinNames: []string{"Y"}},
	}

	counts := Counts(items)

	assert.Equal(t, 2, counts["X"])
	assert.Equal(t, 1, counts["Y"])
}

func TestCounts_ExcludesHomeAndUncategorized(t *testing.T) {
	items := []ProductCategories{
		{ProductID: "p1", JoinNames: []string{"Accueil"}, Text: "accueil"},
		{ProductID: "p2"},
	}

	counts := Counts(items)

	assert.Empty(t, counts, "neither the landing pseudo-category nor empty memberships produce counts")
}

func TestMatchesFilter_EitherSourceSuffices(t *testing.T) {
	assert.True(t, MatchesFilter([]string{"X"}, []string{"X"}, ""), "join-table route")
	assert.True(t, MatchesFilter([]string{"X"}, nil, "W, X"), "text-column route")
	assert.False(t, MatchesFilter([]string{"X"}, []string{"Y"}, "Z"))
	assert.True(t, MatchesFilter(nil, nil, ""), "empty filter matches everything")
}

func TestUniqueCount_IsUnionNotSum(t *testing.T) {
	items := []ProductCategories{
		{ProductID: "p1", JoinNames: []string{"X"}},
		{ProductID: "shared", JoinNames: []string{"X"}, Text: "Y"},
		{ProductID: "p3", Text: "Y"},
	}

	counts := Counts(items)
	unique := UniqueCount(items, []string{"X", "Y"})

	assert.Equal(t, 3, unique)
	assert.Less(t, unique, counts["X"]+counts["Y"], "the shared product must not be counted twice")
}

func TestUniqueCount_EmptyFilterCountsWholeCatalog(t *testing.T) {
	items := []ProductCategories{
		{ProductID: "p1", JoinNames: []string{"X"}},
		{ProductID: "p2"},
	}
	assert.Equal(t, 2, UniqueCount(items, nil))
}

func TestFilterClause_CoversBothSources(t *testing.T) {
	clause := FilterClause(3)

	assert.Contains(t, clause, "product_categories")
	assert.Contains(t, clause, "string_to_array")
	assert.Equal(t, 2, strings.Count(clause, "ANY($3)"), "both branches bind the same parameter")
	assert.Contains(t, clause, " OR ")
}
