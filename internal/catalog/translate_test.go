package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wood-catalog-service/internal/store"
)

func TestTranslateRow_FullRowWithDatabaseScanTypes(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	row := store.Row{
		"id":                       int64(12),
		"nom":                      "Bac carré mélèze",
		"nom_avec_combinaison":     "Bac carré mélèze 80x80",
		"reference":                "BAC-080",
		"disponible_pour_commande": true,
		"quantite":                 int64(4),
		"prix_ht":                  "108.25",
		"prix_ttc":                 "129.90",
		"prix_de_gros":             "95.00",
		"image_de_couverture":      "/img/bac-080.jpg",
		"image_2":                  "/img/bac-080-2.jpg",
		"categorie":                "Bacs, Potagers",
		"description_courte":       "Bac en mélèze massif.",
		"description":              "<p>Bac de plantation en mélèze massif.</p>",
		"created_at":               now,
		"updated_at":               now,
	}

	p, err := TranslateRow(row)

	require.NoError(t, err)
	assert.Equal(t, "12", p.ID)
	assert.Equal(t, "Bac carré mélèze", p.Name)
	require.NotNil(t, p.NameWithCombination)
	assert.Equal(t, "Bac carré mélèze 80x80", *p.NameWithCombination)
	require.NotNil(t, p.ReferenceCode)
	assert.Equal(t, "BAC-080", *p.ReferenceCode)
	assert.True(t, p.Availability)
	require.NotNil(t, p.Quantity)
	assert.Equal(t, 4, *p.Quantity)
	require.NotNil(t, p.PriceWithTax)
	assert.True(t, p.PriceWithTax.Equal(decimal.RequireFromString("129.90")))
	require.NotNil(t, p.WholesalePrice)
	assert.True(t, p.WholesalePrice.Equal(decimal.RequireFromString("95.00")))
	assert.Equal(t, "Bacs, Potagers", p.Category)
	assert.Equal(t, []string{"/img/bac-080.jpg", "/img/bac-080-2.jpg"}, p.ImageURLs)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(now))
}

func TestTranslateRow_JSONDecodedTypes(t *testing.T) {
	// Rows from the hosted backend arrive as decoded JSON: numbers are
	// float64, booleans as 0/1 flags, timestamps as strings.
	row := store.Row{
		"id":                       float64(7),
		"nom":                      "Table de jardin",
		"disponible_pour_commande": float64(1),
		"quantite":                 float64(0),
		"prix_ttc":                 float64(249.5),
		"created_at":               "2024-03-01T10:30:00Z",
	}

	p, err := TranslateRow(row)

	require.NoError(t, err)
	assert.Equal(t, "7", p.ID)
	assert.True(t, p.Availability)
	require.NotNil(t, p.Quantity)
	assert.Equal(t, 0, *p.Quantity, "a zero stock count is a value, not an absence")
	require.NotNil(t, p.PriceWithTax)
	assert.True(t, p.PriceWithTax.Equal(decimal.NewFromFloat(249.5)))
	require.NotNil(t, p.CreatedAt)
	assert.Equal(t, 2024, p.CreatedAt.Year())
}

func TestTranslateRow_OptionalFieldsStayAbsent(t *testing.T) {
	p, err := TranslateRow(store.Row{"id": "p-1", "nom": "Claustra"})

	require.NoError(t, err)
	assert.Nil(t, p.NameWithCombination)
	assert.Nil(t, p.ReferenceCode)
	assert.Nil(t, p.Quantity)
	assert.Nil(t, p.PriceWithoutTax, "a missing price means price on request, not zero")
	assert.Nil(t, p.PriceWithTax)
	assert.Nil(t, p.WholesalePrice)
	assert.Nil(t, p.CoverImage)
	assert.Nil(t, p.ImageURLs)
	assert.Nil(t, p.ShortDescription)
	assert.Nil(t, p.Description)
	assert.Nil(t, p.CreatedAt)
	assert.False(t, p.Availability)
	assert.Equal(t, "", p.Category)
}

func TestTranslateRow_MissingIdentity(t *testing.T) {
	_, err := TranslateRow(store.Row{"nom": "Sans identifiant"})
	var malformed *MalformedRowError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "id", malformed.Field)

	_, err = TranslateRow(store.Row{"id": "p-1"})
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "nom", malformed.Field)
}
