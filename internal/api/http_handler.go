package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"wood-catalog-service/internal/domain"
)

// ProductService is the façade the handlers are thin pass-throughs to.
type ProductService interface {
	ProductsByCategory(ctx context.Context, categories []string) (domain.ProductsByCategory, error)
	CategoriesWithCount(ctx context.Context) (domain.CategoryCounts, error)
	AvailableCategories(ctx context.Context) ([]string, error)
	ProductByID(ctx context.Context, id string) (*domain.Product, error)
	SearchProducts(ctx context.Context, filters domain.SearchFilters) ([]domain.Product, error)
	UniqueProductsCount(ctx context.Context, categories []string) (int, error)
	ClearCache()
	ClearCacheKey(key string)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	products ProductService
	validate *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(products ProductService) *HTTPHandler {
	return &HTTPHandler{
		products: products,
		validate: validator.New(),
	}
}

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Response{Success: false, Error: message})
}

func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, Response{Success: true, Data: data})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: Failed to encode JSON response: %v", err)
	}
}

// parseCategories reads the comma-separated categories query parameter.
func parseCategories(r *http.Request) []string {
	raw := r.URL.Query().Get("categories")
	if raw == "" {
		return nil
	}
	var categories []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			categories = append(categories, t)
		}
	}
	return categories
}

// productSearchInput carries the validated search parameters.
type productSearchInput struct {
	Search string `validate:"omitempty,max=200"`
}

func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	qParams := r.URL.Query()

	input := productSearchInput{Search: qParams.Get("search")}
	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	filters := domain.SearchFilters{
		Search:     input.Search,
		Categories: parseCategories(r),
	}
	if availStr := qParams.Get("availability"); availStr != "" {
		b, err := strconv.ParseBool(availStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid availability value: must be true or false")
			return
		}
		filters.Availability = &b
	}
	if priceStr := qParams.Get("min_price"); priceStr != "" {
		d, err := decimal.NewFromString(priceStr)
		if err != nil || d.IsNegative() {
			respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
			return
		}
		filters.MinPrice = &d
	}
	if priceStr := qParams.Get("max_price"); priceStr != "" {
		d, err := decimal.NewFromString(priceStr)
		if err != nil || d.IsNegative() {
			respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
			return
		}
		filters.MaxPrice = &d
	}
	if filters.MinPrice != nil && filters.MaxPrice != nil && filters.MinPrice.GreaterThan(*filters.MaxPrice) {
		respondWithError(w, http.StatusBadRequest, "min_price cannot exceed max_price")
		return
	}

	products, err := h.products.SearchProducts(r.Context(), filters)
	if err != nil {
		log.Printf("ERROR: SearchProducts failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondWithData(w, http.StatusOK, products)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Missing product ID")
		return
	}

	product, err := h.products.ProductByID(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: ProductByID for %q failed: %v", id, err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if product == nil {
		respondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	respondWithData(w, http.StatusOK, product)
}

func (h *HTTPHandler) GetProductsByCategory(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.products.ProductsByCategory(r.Context(), parseCategories(r))
	if err != nil {
		log.Printf("ERROR: ProductsByCategory failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithData(w, http.StatusOK, grouped)
}

func (h *HTTPHandler) GetUniqueProductsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.products.UniqueProductsCount(r.Context(), parseCategories(r))
	if err != nil {
		log.Printf("ERROR: UniqueProductsCount failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithData(w, http.StatusOK, map[string]int{"count": count})
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.AvailableCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: AvailableCategories failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondWithData(w, http.StatusOK, categories)
}

// CategoryCountEntry is one row of the counts listing, ordered by descending
// product count for direct display.
type CategoryCountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func (h *HTTPHandler) GetCategoriesWithCount(w http.ResponseWriter, r *http.Request) {
	counts, err := h.products.CategoriesWithCount(r.Context())
	if err != nil {
		log.Printf("ERROR: CategoriesWithCount failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]CategoryCountEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, CategoryCountEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	respondWithData(w, http.StatusOK, entries)
}

// ClearCache invalidates cached views, either one key or everything. Used
// after writes such as the bulk recategorization batch.
func (h *HTTPHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		h.products.ClearCacheKey(key)
		respondWithData(w, http.StatusOK, map[string]string{"cleared": key})
		return
	}
	h.products.ClearCache()
	respondWithData(w, http.StatusOK, map[string]string{"cleared": "all"})
}

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.SearchProducts)
		// Fixed segments must come before the {productId} route.
		r.Get("/by-category", h.GetProductsByCategory)
		r.Get("/count", h.GetUniqueProductsCount)
		r.Get("/{productId}", h.GetProductByID)
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/counts", h.GetCategoriesWithCount)
	})

	r.Post("/api/v1/cache/clear", h.ClearCache)
}
