package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"wood-catalog-service/internal/domain"
	"wood-catalog-service/internal/store"
)

// DefaultTTL is how long a computed result stays servable from the cache.
const DefaultTTL = 5 * time.Minute

const (
	productsTable   = "produits"
	linksTable      = "product_categories"
	categoriesTable = "categories"
)

// Service is the single entry point for product data. It orchestrates the
// active backend driver, the field translator and the category reconciler,
// and owns a TTL cache keyed by operation and normalized arguments. Construct
// one per process with NewService and inject it; tests build their own
// instances so nothing leaks across cases.
type Service struct {
	driver store.Driver
	cache  *gocache.Cache
}

// NewService builds a Service around the given driver. A non-positive ttl
// falls back to DefaultTTL. The janitor interval matches the ttl so expired
// entries for abandoned filter combinations are swept instead of accumulating.
func NewService(driver store.Driver, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		driver: driver,
		cache:  gocache.New(ttl, ttl),
	}
}

// snapshot is one consistent read of the catalog: translated products plus
// both category sources per product, in product display order.
type snapshot struct {
	products []domain.Product
	cats     []ProductCategories
}

type fetchResult struct {
	rows []store.Row
	err  error
}

// loadSnapshot fetches the three relations backing every grouped operation.
// The two membership fetches are independent of the product fetch and run
// concurrently with it.
func (s *Service) loadSnapshot(ctx context.Context) (*snapshot, error) {
	linkCh := make(chan fetchResult, 1)
	catCh := make(chan fetchResult, 1)
	go func() {
		rows, err := s.driver.Select(ctx, linksTable, store.SelectOptions{})
		linkCh <- fetchResult{rows, err}
	}()
	go func() {
		rows, err := s.driver.Select(ctx, categoriesTable, store.SelectOptions{})
		catCh <- fetchResult{rows, err}
	}()

	prodRows, err := s.driver.Select(ctx, productsTable, store.SelectOptions{
		OrderBy: []store.OrderBy{{Column: "nom"}},
	})
	links, cats := <-linkCh, <-catCh
	if err != nil {
		return nil, err
	}
	if links.err != nil {
		return nil, links.err
	}
	if cats.err != nil {
		return nil, cats.err
	}

	nameByID := make(map[string]string, len(cats.rows))
	for _, row := range cats.rows {
		id, _ := stringValue(row["id"])
		name, _ := stringValue(row["name"])
		if id != "" && name != "" {
			nameByID[id] = name
		}
	}
	joinNames := make(map[string][]string, len(links.rows))
	for _, row := range links.rows {
		pid, _ := stringValue(row["product_id"])
		cid, _ := stringValue(row["category_id"])
		if name := nameByID[cid]; pid != "" && name != "" {
			joinNames[pid] = append(joinNames[pid], name)
		}
	}

	snap := &snapshot{
		products: make([]domain.Product, 0, len(prodRows)),
		cats:     make([]ProductCategories, 0, len(prodRows)),
	}
	for _, row := range prodRows {
		p, err := TranslateRow(row)
		if err != nil {
			return nil, err
		}
		snap.products = append(snap.products, *p)
		snap.cats = append(snap.cats, ProductCategories{
			ProductID: p.ID,
			JoinNames: joinNames[p.ID],
			Text:      p.Category,
		})
	}
	return snap, nil
}

// ProductsByCategory groups products under each reconciled category name,
// each group ordered by display name. With a nil or empty filter every
// product appears under every category it belongs to; with a filter only the
// requested names are returned, matched through either membership source.
func (s *Service) ProductsByCategory(ctx context.Context, categories []string) (domain.ProductsByCategory, error) {
	key := cacheKey("products_by_category", categoriesKeyPart(categories))
	if v, ok := cached[domain.ProductsByCategory](s.cache, key); ok {
		return cloneGrouped(v), nil
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		requested[c] = struct{}{}
	}

	grouped := make(domain.ProductsByCategory)
	for i := range snap.products {
		p := snap.products[i]
		membership := Membership(snap.cats[i].JoinNames, snap.cats[i].Text)
		p.Category = strings.Join(membership, ", ")
		for _, name := range membership {
			if len(requested) > 0 {
				if _, ok := requested[name]; !ok {
					continue
				}
			}
			grouped[name] = append(grouped[name], p)
		}
	}
	for name := range grouped {
		group := grouped[name]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}

	s.cache.Set(key, grouped, gocache.DefaultExpiration)
	return cloneGrouped(grouped), nil
}

// CategoriesWithCount returns the distinct product count per category name
// across both membership sources.
func (s *Service) CategoriesWithCount(ctx context.Context) (domain.CategoryCounts, error) {
	key := cacheKey("categories_with_count")
	if v, ok := cached[domain.CategoryCounts](s.cache, key); ok {
		return maps.Clone(v), nil
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts := domain.CategoryCounts(Counts(snap.cats))

	s.cache.Set(key, counts, gocache.DefaultExpiration)
	return maps.Clone(counts), nil
}

// AvailableCategories lists the join-table category catalog, sorted and
// deduplicated. The text column is not an independent catalog: it only ever
// references names that should already exist here.
func (s *Service) AvailableCategories(ctx context.Context) ([]string, error) {
	key := cacheKey("available_categories")
	if v, ok := cached[[]string](s.cache, key); ok {
		return slices.Clone(v), nil
	}

	rows, err := s.driver.Select(ctx, categoriesTable, store.SelectOptions{
		Columns: []string{"name"},
		OrderBy: []store.OrderBy{{Column: "name"}},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, _ := stringValue(row["name"])
		if name == "" || IsHomeCategory(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	s.cache.Set(key, names, gocache.DefaultExpiration)
	return slices.Clone(names), nil
}

// ProductByID returns the product or (nil, nil) when no row matches; absence
// is an expected outcome, not an error. The returned product carries the
// reconciled category display string.
func (s *Service) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	key := cacheKey("product", id)
	if v, ok := cached[*domain.Product](s.cache, key); ok {
		return cloneProduct(v), nil
	}

	rows, err := s.driver.Select(ctx, productsTable, store.SelectOptions{
		Where: map[string]any{"id": id},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p, err := TranslateRow(rows[0])
	if err != nil {
		return nil, err
	}

	joinNames, err := s.joinNamesFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Category = strings.Join(Membership(joinNames, p.Category), ", ")

	s.cache.Set(key, p, gocache.DefaultExpiration)
	return cloneProduct(p), nil
}

// SearchProducts runs the filter set as one raw query so the database does
// the substring matching. All clauses are ANDed; the category clause uses the
// reconciler's hybrid fragment so both membership sources are honored.
func (s *Service) SearchProducts(ctx context.Context, filters domain.SearchFilters) ([]domain.Product, error) {
	key := cacheKey("search_products", searchKeyPart(filters))
	if v, ok := cached[[]domain.Product](s.cache, key); ok {
		return slices.Clone(v), nil
	}

	var sb strings.Builder
	sb.WriteString("SELECT p.* FROM produits p WHERE 1=1")
	var args []any
	argID := 1

	if filters.Search != "" {
		fmt.Fprintf(&sb, " AND (p.nom ILIKE $%d OR p.description ILIKE $%d OR p.description_courte ILIKE $%d OR p.reference ILIKE $%d)",
			argID, argID, argID, argID)
		args = append(args, "%"+filters.Search+"%")
		argID++
	}
	if filters.Availability != nil {
		fmt.Fprintf(&sb, " AND p.disponible_pour_commande = $%d", argID)
		args = append(args, *filters.Availability)
		argID++
	}
	if filters.MinPrice != nil {
		fmt.Fprintf(&sb, " AND p.prix_ttc >= $%d", argID)
		args = append(args, filters.MinPrice.String())
		argID++
	}
	if filters.MaxPrice != nil {
		fmt.Fprintf(&sb, " AND p.prix_ttc <= $%d", argID)
		args = append(args, filters.MaxPrice.String())
		argID++
	}
	if len(filters.Categories) > 0 {
		sb.WriteString(" AND " + FilterClause(argID))
		args = append(args, filters.Categories)
		argID++
	}
	sb.WriteString(" ORDER BY p.nom ASC")

	rows, err := s.driver.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := TranslateRow(row)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	s.cache.Set(key, products, gocache.DefaultExpiration)
	return slices.Clone(products), nil
}

// UniqueProductsCount counts distinct products matching the hybrid category
// filter; with no filter it counts the whole catalog. Summing per-category
// counts instead would double-count products in several selected categories.
func (s *Service) UniqueProductsCount(ctx context.Context, categories []string) (int, error) {
	key := cacheKey("unique_products_count", categoriesKeyPart(categories))
	if v, ok := cached[int](s.cache, key); ok {
		return v, nil
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	count := UniqueCount(snap.cats, categories)

	s.cache.Set(key, count, gocache.DefaultExpiration)
	return count, nil
}

// ClearCache drops every cached result. Call it after any write, such as the
// bulk recategorization batch, so grouped and counted views are recomputed.
func (s *Service) ClearCache() {
	s.cache.Flush()
}

// ClearCacheKey drops a single cached result.
func (s *Service) ClearCacheKey(key string) {
	s.cache.Delete(key)
}

func (s *Service) joinNamesFor(ctx context.Context, productID string) ([]string, error) {
	links, err := s.driver.Select(ctx, linksTable, store.SelectOptions{
		Columns: []string{"category_id"},
		Where:   map[string]any{"product_id": productID},
	})
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	cats, err := s.driver.Select(ctx, categoriesTable, store.SelectOptions{})
	if err != nil {
		return nil, err
	}
	nameByID := make(map[string]string, len(cats))
	for _, row := range cats {
		id, _ := stringValue(row["id"])
		name, _ := stringValue(row["name"])
		if id != "" && name != "" {
			nameByID[id] = name
		}
	}
	var names []string
	for _, row := range links {
		cid, _ := stringValue(row["category_id"])
		if name := nameByID[cid]; name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Cached containers are shared between hits, so every operation hands out a
// copy: a caller mutating its result must never corrupt later reads. Products
// are copied by value; their pointer fields still reference the stored data.
func cloneGrouped(m domain.ProductsByCategory) domain.ProductsByCategory {
	out := make(domain.ProductsByCategory, len(m))
	for name, group := range m {
		out[name] = slices.Clone(group)
	}
	return out
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.ImageURLs = slices.Clone(cp.ImageURLs)
	return &cp
}

func searchKeyPart(f domain.SearchFilters) string {
	parts := []string{fmt.Sprintf("q=%d#%s", len(f.Search), f.Search), "cats=" + categoriesKeyPart(f.Categories)}
	if f.Availability != nil {
		parts = append(parts, fmt.Sprintf("avail=%t", *f.Availability))
	}
	if f.MinPrice != nil {
		parts = append(parts, "min="+f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		parts = append(parts, "max="+f.MaxPrice.String())
	}
	return strings.Join(parts, "|")
}
