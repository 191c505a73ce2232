package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wood-catalog-service/internal/domain"
	"wood-catalog-service/internal/store"
)

// MalformedRowError is raised only when a row lacks the fields required for
// identity or display. Missing optional fields are never an error.
type MalformedRowError struct {
	Field string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("catalog: row is missing required field %q", e.Field)
}

// TranslateRow maps a physical product row onto the stable external Product
// shape. The physical schema carries French column names; no raw column name
// leaks past this function. It is total over any row containing an id and a
// name: absent optional fields stay nil, they are never coerced to zero or
// to the empty string. Values arrive either as database scan types (int64,
// bool, time.Time) or as decoded JSON (float64, string); both are accepted.
func TranslateRow(row store.Row) (*domain.Product, error) {
	id, ok := stringValue(row["id"])
	if !ok || id == "" {
		return nil, &MalformedRowError{Field: "id"}
	}
	name, ok := stringValue(row["nom"])
	if !ok || name == "" {
		return nil, &MalformedRowError{Field: "nom"}
	}

	p := &domain.Product{
		ID:                  id,
		Name:                name,
		NameWithCombination: optString(row, "nom_avec_combinaison"),
		ReferenceCode:       optString(row, "reference"),
		Availability:        boolValue(row["disponible_pour_commande"]),
		Quantity:            optInt(row, "quantite"),
		PriceWithoutTax:     optDecimal(row, "prix_ht"),
		PriceWithTax:        optDecimal(row, "prix_ttc"),
		WholesalePrice:      optDecimal(row, "prix_de_gros"),
		CoverImage:          optString(row, "image_de_couverture"),
		Image2:              optString(row, "image_2"),
		Image3:              optString(row, "image_3"),
		Image4:              optString(row, "image_4"),
		Image5:              optString(row, "image_5"),
		ShortDescription:    optString(row, "description_courte"),
		Description:         optString(row, "description"),
		CreatedAt:           optTime(row, "created_at"),
		UpdatedAt:           optTime(row, "updated_at"),
	}

	if c := optString(row, "categorie"); c != nil {
		p.Category = *c
	}
	for _, img := range []*string{p.CoverImage, p.Image2, p.Image3, p.Image4, p.Image5} {
		if img != nil {
			p.ImageURLs = append(p.ImageURLs, *img)
		}
	}
	return p, nil
}

// stringValue renders a scalar as a string. Integral floats (the JSON decoding
// of a numeric id) print without a fractional part.
func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func optString(row store.Row, key string) *string {
	s, ok := stringValue(row[key])
	if !ok || s == "" {
		return nil
	}
	return &s
}

func boolValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t == "1" || strings.EqualFold(t, "true") || strings.EqualFold(t, "t")
	default:
		return false
	}
}

func optInt(row store.Row, key string) *int {
	switch t := row[key].(type) {
	case int64:
		n := int(t)
		return &n
	case int:
		return &t
	case float64:
		n := int(t)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &n
		}
	}
	return nil
}

func optDecimal(row store.Row, key string) *decimal.Decimal {
	switch t := row[key].(type) {
	case float64:
		d := decimal.NewFromFloat(t)
		return &d
	case int64:
		d := decimal.NewFromInt(t)
		return &d
	case string:
		if t == "" {
			return nil
		}
		if d, err := decimal.NewFromString(t); err == nil {
			return &d
		}
	}
	return nil
}

func optTime(row store.Row, key string) *time.Time {
	switch t := row[key].(type) {
	case time.Time:
		return &t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return &ts
			}
		}
	}
	return nil
}
