package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is one entry of the join-table-backed category catalog.
type Category struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Product is the stable external shape of a catalog product. Every optional
// column maps to a pointer (or nil slice) so that an absent value is
// distinguishable from a zero one: a nil price means "price on request",
// never "free".
type Product struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	NameWithCombination *string          `json:"name_with_combination,omitempty"`
	ReferenceCode       *string          `json:"reference_code,omitempty"`
	Availability        bool             `json:"availability"`
	Quantity            *int             `json:"quantity,omitempty"`
	PriceWithoutTax     *decimal.Decimal `json:"price_without_tax,omitempty"`
	PriceWithTax        *decimal.Decimal `json:"price_with_tax,omitempty"`
	WholesalePrice      *decimal.Decimal `json:"wholesale_price,omitempty"`
	CoverImage          *string          `json:"cover_image,omitempty"`
	Image2              *string          `json:"image_2,omitempty"`
	Image3              *string          `json:"image_3,omitempty"`
	Image4              *string          `json:"image_4,omitempty"`
	Image5              *string          `json:"image_5,omitempty"`
	ImageURLs           []string         `json:"image_urls,omitempty"`
	// Category is a display convenience: one or more category names joined
	// with ", ". Canonical membership is resolved by the catalog package.
	Category         string     `json:"category"`
	ShortDescription *string    `json:"short_description,omitempty"`
	Description      *string    `json:"description,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// ProductsByCategory groups products under each category name they belong to.
// A product with several categories appears once per category.
type ProductsByCategory map[string][]Product

// CategoryCounts maps a category name to its distinct product count.
type CategoryCounts map[string]int

// SearchFilters describes a product search. All present clauses are ANDed.
type SearchFilters struct {
	Search       string           // case-insensitive substring over name/description/reference
	Categories   []string         // hybrid category filter
	Availability *bool            // equality on the availability flag
	MinPrice     *decimal.Decimal // inclusive lower bound on the tax-inclusive price
	MaxPrice     *decimal.Decimal // inclusive upper bound on the tax-inclusive price
}
