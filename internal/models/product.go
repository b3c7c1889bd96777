package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Product represents a product in the catalog.
type Product struct {
	ID          string                      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string                      `json:"title" gorm:"type:text;uniqueIndex;not null"`
	Price       float64                     `json:"price" gorm:"not null;default:0"`
	Description *string                     `json:"description" gorm:"type:text"`
	Slug        string                      `json:"slug" gorm:"type:text;uniqueIndex;not null"`
	Stock       int                         `json:"stock" gorm:"not null;default:0"`
	Sizes       datatypes.JSONSlice[string] `json:"sizes" gorm:"not null"`
	Gender      string                      `json:"gender" gorm:"type:text;not null"`
	Tags        datatypes.JSONSlice[string] `json:"tags" gorm:"not null;default:'[]'"`
	// Images are written and loaded explicitly by the repository; the tag
	// only declares the cascading foreign key on product_images.
	Images    []ProductImage `json:"images" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ProductImage is an image URL owned by a product.
type ProductImage struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	URL       string `json:"url" gorm:"type:text;not null"`
	Position  int    `json:"-" gorm:"not null;default:0"`
	ProductID string `json:"-" gorm:"type:varchar(36);not null;index"`
}

// NormalizeSlug lowercases s, turns spaces into underscores and drops apostrophes.
func NormalizeSlug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "'", "")
}

// PrepareInsert derives the slug from the title when it is missing and
// normalizes it. List columns are never stored as JSON null.
func (p *Product) PrepareInsert() {
	if p.Slug == "" {
		p.Slug = p.Title
	}
	p.Slug = NormalizeSlug(p.Slug)
	p.ensureLists()
}

// PrepareUpdate re-normalizes whatever slug the product carries.
func (p *Product) PrepareUpdate() {
	p.Slug = NormalizeSlug(p.Slug)
	p.ensureLists()
}

func (p *Product) ensureLists() {
	if p.Sizes == nil {
		p.Sizes = datatypes.JSONSlice[string]{}
	}
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
}

// ImageURLs projects the product images to their URLs, in position order.
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// NewProductImages builds unsaved image records for the given URLs.
func NewProductImages(urls []string) []ProductImage {
	images := make([]ProductImage, 0, len(urls))
	for i, url := range urls {
		images = append(images, ProductImage{
			ID:       uuid.New().String(),
			URL:      url,
			Position: i,
		})
	}
	return images
}
