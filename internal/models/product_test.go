package models_test

import (
	"testing"

	"catalog/internal/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestNormalizeSlug(t *testing.T) {
	cases := map[string]string{
		"Blue Sky's":          "blue_skys",
		"Men's Chill Crew":    "mens_chill_crew",
		"already_normal":      "already_normal",
		"  Two  Spaces ":      "__two__spaces_",
		"":                    "",
		"KIDS'  TEE 'Classic'": "kids__tee_classic",
	}
	for in, want := range cases {
		assert.Equal(t, want, models.NormalizeSlug(in), "input %q", in)
	}
}

func TestNormalizeSlug_Idempotent(t *testing.T) {
	inputs := []string{"Blue Sky's", "A B C", "x'y'z", "Ünïcode Tee", "it''s  ok"}
	for _, in := range inputs {
		once := models.NormalizeSlug(in)
		assert.Equal(t, once, models.NormalizeSlug(once), "input %q", in)
	}
}

func TestProduct_PrepareInsert(t *testing.T) {
	// Slug derived from the title
	p := &models.Product{Title: "Men's Raven Lightweight Hoodie"}
	p.PrepareInsert()
	assert.Equal(t, "mens_raven_lightweight_hoodie", p.Slug)
	assert.NotNil(t, p.Sizes)
	assert.NotNil(t, p.Tags)

	// Explicit slug wins but is still normalized
	p = &models.Product{Title: "Ignored", Slug: "Custom Slug's"}
	p.PrepareInsert()
	assert.Equal(t, "custom_slugs", p.Slug)
}

func TestProduct_PrepareUpdate(t *testing.T) {
	p := &models.Product{Title: "New Title", Slug: "Old Slug"}
	p.PrepareUpdate()
	assert.Equal(t, "old_slug", p.Slug, "update re-normalizes the current slug and never re-derives it")
}

func TestCreateProductInput_ToProduct(t *testing.T) {
	in := models.CreateProductInput{
		Title:  "Tee",
		Price:  12.5,
		Sizes:  []string{"S", "M"},
		Gender: "unisex",
		Images: []string{"a.jpg", "b.jpg"},
	}
	p := in.ToProduct()
	assert.Equal(t, "Tee", p.Title)
	assert.Equal(t, datatypes.JSONSlice[string]{"S", "M"}, p.Sizes)
	assert.Len(t, p.Images, 2)
	assert.Equal(t, 0, p.Images[0].Position)
	assert.Equal(t, 1, p.Images[1].Position)
	assert.NotEmpty(t, p.Images[0].ID)
	assert.NotEqual(t, p.Images[0].ID, p.Images[1].ID)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.ImageURLs())
}

func TestUpdateProductInput_ApplyTo(t *testing.T) {
	desc := "original"
	p := &models.Product{
		ID:          "id-1",
		Title:       "Tee",
		Price:       10,
		Description: &desc,
		Slug:        "tee",
		Stock:       3,
		Sizes:       datatypes.JSONSlice[string]{"S"},
		Gender:      "men",
		Tags:        datatypes.JSONSlice[string]{"shirt"},
	}

	price := 20.0
	stock := 0
	in := models.UpdateProductInput{Price: &price, Stock: &stock, Tags: []string{}}
	in.ApplyTo(p)

	assert.Equal(t, "Tee", p.Title)
	assert.Equal(t, 20.0, p.Price)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, "original", *p.Description)
	assert.Equal(t, datatypes.JSONSlice[string]{"S"}, p.Sizes)
	assert.Equal(t, datatypes.JSONSlice[string]{}, p.Tags)
	assert.Equal(t, "men", p.Gender)
	assert.False(t, in.ReplacesImages())

	assert.True(t, models.UpdateProductInput{Images: []string{}}.ReplacesImages())
}

func TestNewProductView(t *testing.T) {
	p := &models.Product{ID: "1", Title: "Tee", Slug: "tee"}
	view := models.NewProductView(p)
	assert.Equal(t, []string{}, view.Images)
	assert.Equal(t, []string{}, view.Sizes)
	assert.Equal(t, []string{}, view.Tags)
}
