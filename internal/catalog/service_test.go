package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wood-catalog-service/internal/domain"
	"wood-catalog-service/internal/store"
)

// fakeDriver is an in-memory store.Driver seeded per test.
type fakeDriver struct {
	mu          sync.Mutex
	tables      map[string][]store.Row
	selectCalls int
	selectErr   error

	queryRows  []store.Row
	queryCalls int
	queryErr   error
	lastQuery  string
	lastArgs   []any
}

func (f *fakeDriver) Select(ctx context.Context, table string, opts store.SelectOptions) ([]store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectCalls++
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.tables[table], nil
}

func (f *fakeDriver) Query(ctx context.Context, query string, args ...any) ([]store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	f.lastQuery = query
	f.lastArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRows, nil
}

func (f *fakeDriver) Insert(ctx context.Context, table string, data store.Row) (store.Row, error) {
	return data, nil
}

func (f *fakeDriver) Update(ctx context.Context, table string, data store.Row, where map[string]any) (store.Row, error) {
	return data, nil
}

func (f *fakeDriver) Delete(ctx context.Context, table string, where map[string]any) ([]store.Row, error) {
	return nil, nil
}

func (f *fakeDriver) Ping(ctx context.Context) error { return nil }
func (f *fakeDriver) Close() error                   { return nil }

func (f *fakeDriver) selectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectCalls
}

func productRow(id int64, name, categorie string) store.Row {
	row := store.Row{"id": id, "nom": name}
	if categorie != "" {
		row["categorie"] = categorie
	}
	return row
}

func TestService_ProductsByCategory_JoinTableOnly(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits":           {productRow(1, "Lame de terrasse", "")},
		"product_categories": {{"product_id": int64(1), "category_id": int64(10)}},
		"categories":         {{"id": int64(10), "name": "Terrasses"}},
	}}
	service := NewService(driver, time.Minute)

	grouped, err := service.ProductsByCategory(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, grouped, 1)
	require.Len(t, grouped["Terrasses"], 1)
	assert.Equal(t, "Lame de terrasse", grouped["Terrasses"][0].Name)
	assert.Equal(t, "Terrasses", grouped["Terrasses"][0].Category)
}

func TestService_ProductsByCategory_TextColumnFanOut(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(1, "Bac carré", "Bacs, Potagers")},
	}}
	service := NewService(driver, time.Minute)

	grouped, err := service.ProductsByCategory(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, grouped, 2, "the product appears once per category it belongs to")
	assert.Equal(t, "Bac carré", grouped["Bacs"][0].Name)
	assert.Equal(t, "Bac carré", grouped["Potagers"][0].Name)
	assert.Equal(t, "Bacs, Potagers", grouped["Bacs"][0].Category)
}

func TestService_ProductsByCategory_HybridFilter(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {
			productRow(1, "Via jointure", ""),
			productRow(2, "Via texte", "X"),
			productRow(3, "Hors filtre", "Y"),
		},
		"product_categories": {{"product_id": int64(1), "category_id": int64(5)}},
		"categories":         {{"id": int64(5), "name": "X"}},
	}}
	service := NewService(driver, time.Minute)

	grouped, err := service.ProductsByCategory(context.Background(), []string{"X"})

	require.NoError(t, err)
	require.Len(t, grouped, 1, "only the requested category is returned")
	require.Len(t, grouped["X"], 2, "both routes to X must be honored")
	for _, p := range grouped["X"] {
		assert.NotEqual(t, "Hors filtre", p.Name, "the Y-only product is excluded")
	}
}

func TestService_ProductsByCategory_SentinelGroup(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(1, "Orphelin", "")},
	}}
	service := NewService(driver, time.Minute)

	grouped, err := service.ProductsByCategory(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, grouped[UncategorizedName], 1)
	assert.Equal(t, UncategorizedName, grouped[UncategorizedName][0].Category)
}

func TestService_CategoriesWithCount_DistinctAcrossSources(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {
			productRow(1, "Par jointure", ""),
			productRow(2, "Par texte", "X"),
			productRow(3, "Par les deux", "X"),
		},
		"product_categories": {
			{"product_id": int64(1), "category_id": int64(5)},
			{"product_id": int64(3), "category_id": int64(5)},
		},
		"categories": {{"id": int64(5), "name": "X"}},
	}}
	service := NewService(driver, time.Minute)

	counts, err := service.CategoriesWithCount(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, counts["X"], "a product referenced by both sources counts once")
}

func TestService_AvailableCategories_SortedDedupedNoHome(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"categories": {
			{"id": int64(1), "name": "Terrasses"},
			{"id": int64(2), "name": "Accueil"},
			{"id": int64(3), "name": "Bacs"},
			{"id": int64(4), "name": "Bacs"},
		},
	}}
	service := NewService(driver, time.Minute)

	names, err := service.AvailableCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Bacs", "Terrasses"}, names)
}

func TestService_ProductByID_Found(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(7, "Pergola", "Pergolas")},
	}}
	service := NewService(driver, time.Minute)

	p, err := service.ProductByID(context.Background(), "7")

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "7", p.ID)
	assert.Equal(t, "Pergolas", p.Category)
}

func TestService_ProductByID_AbsentIsNilNotError(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{}}
	service := NewService(driver, time.Minute)

	p, err := service.ProductByID(context.Background(), "nonexistent")

	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestService_CategoryNamedAllIsNotTheUnfilteredView(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {
			productRow(1, "Banc", "all"),
			productRow(2, "Bac", "Bacs"),
		},
	}}
	service := NewService(driver, time.Minute)

	unfiltered, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, unfiltered, 2)

	filtered, err := service.ProductsByCategory(context.Background(), []string{"all"})
	require.NoError(t, err)
	require.Len(t, filtered, 1, "the filtered call must not be served the cached unfiltered grouping")
	require.Len(t, filtered["all"], 1)
	assert.Equal(t, "Banc", filtered["all"][0].Name)
}

func TestService_CachedResultsAreIsolatedFromCallers(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(1, "Bac", "Bacs")},
	}}
	service := NewService(driver, time.Minute)

	first, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	first["Bacs"][0].Name = "Muté"
	delete(first, "Bacs")

	second, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, second["Bacs"], 1)
	assert.Equal(t, "Bac", second["Bacs"][0].Name, "mutating a returned group must not touch the cache")

	p, err := service.ProductByID(context.Background(), "1")
	require.NoError(t, err)
	p.Name = "Autre"

	again, err := service.ProductByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Bac", again.Name)
}

func TestService_CacheHitSkipsBackendUntilTTLExpiry(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(1, "Bac", "Bacs")},
	}}
	service := NewService(driver, 60*time.Millisecond)

	first, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	callsAfterFirst := driver.selectCount()

	second, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, driver.selectCount(), "a hit within the TTL must not touch the backend")
	assert.Equal(t, first, second)

	time.Sleep(90 * time.Millisecond)

	_, err = service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, driver.selectCount(), callsAfterFirst, "an expired entry must trigger a fresh fetch")
}

func TestService_FailedFetchIsNotCached(t *testing.T) {
	driver := &fakeDriver{
		tables:    map[string][]store.Row{"produits": {productRow(1, "Bac", "Bacs")}},
		selectErr: &store.DatabaseError{Driver: "postgres", Op: "query", Err: context.DeadlineExceeded},
	}
	service := NewService(driver, time.Minute)

	_, err := service.ProductsByCategory(context.Background(), nil)
	require.Error(t, err, "backend errors propagate unchanged")

	driver.mu.Lock()
	driver.selectErr = nil
	driver.mu.Unlock()

	grouped, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, grouped["Bacs"], 1, "the failure must not have populated the cache")
}

func TestService_SearchProducts_BuildsHybridQuery(t *testing.T) {
	driver := &fakeDriver{queryRows: []store.Row{productRow(1, "Bac carré", "Bacs")}}
	service := NewService(driver, time.Minute)
	avail := true

	products, err := service.SearchProducts(context.Background(), domain.SearchFilters{
		Search:       "bac",
		Categories:   []string{"Bacs"},
		Availability: &avail,
	})

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Contains(t, driver.lastQuery, "ILIKE")
	assert.Contains(t, driver.lastQuery, "disponible_pour_commande")
	assert.Contains(t, driver.lastQuery, "string_to_array")
	assert.Contains(t, driver.lastQuery, "product_categories")
	require.Len(t, driver.lastArgs, 3)
	assert.Equal(t, "%bac%", driver.lastArgs[0])
	assert.Equal(t, []string{"Bacs"}, driver.lastArgs[2])
}

func TestService_UniqueProductsCount_UnionNotSum(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {
			productRow(1, "Dans X", ""),
			productRow(2, "Dans X et Y", "Y"),
			productRow(3, "Dans Y", "Y"),
		},
		"product_categories": {
			{"product_id": int64(1), "category_id": int64(5)},
			{"product_id": int64(2), "category_id": int64(5)},
		},
		"categories": {{"id": int64(5), "name": "X"}},
	}}
	service := NewService(driver, time.Minute)

	count, err := service.UniqueProductsCount(context.Background(), []string{"X", "Y"})

	require.NoError(t, err)
	assert.Equal(t, 3, count, "the overlapping product is counted once")
}

func TestService_ClearCacheForcesRefetch(t *testing.T) {
	driver := &fakeDriver{tables: map[string][]store.Row{
		"produits": {productRow(1, "Bac", "Bacs")},
	}}
	service := NewService(driver, time.Minute)

	_, err := service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	calls := driver.selectCount()

	service.ClearCache()

	_, err = service.ProductsByCategory(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, driver.selectCount(), calls)
}
