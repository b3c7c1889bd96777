package models

import "gorm.io/datatypes"

// CreateProductInput is the payload accepted when creating a product.
type CreateProductInput struct {
	Title       string   `json:"title" validate:"required,min=1"`
	Price       float64  `json:"price" validate:"gte=0"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Slug        string   `json:"slug" validate:"omitempty,max=200"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Sizes       []string `json:"sizes" validate:"required,dive,required"`
	Gender      string   `json:"gender" validate:"required,oneof=men women kid unisex"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	Images      []string `json:"images" validate:"omitempty,dive,required"`
}

// ToProduct builds an unsaved product, images included.
func (in CreateProductInput) ToProduct() *Product {
	return &Product{
		Title:       in.Title,
		Price:       in.Price,
		Description: in.Description,
		Slug:        in.Slug,
		Stock:       in.Stock,
		Sizes:       datatypes.NewJSONSlice(in.Sizes),
		Gender:      in.Gender,
		Tags:        datatypes.NewJSONSlice(in.Tags),
		Images:      NewProductImages(in.Images),
	}
}

// UpdateProductInput carries a partial update. Nil fields are left untouched;
// a non-nil Images slice (even an empty one) replaces the whole image set.
type UpdateProductInput struct {
	Title       *string  `json:"title" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Slug        *string  `json:"slug" validate:"omitempty,min=1,max=200"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Sizes       []string `json:"sizes" validate:"omitempty,dive,required"`
	Gender      *string  `json:"gender" validate:"omitempty,oneof=men women kid unisex"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	Images      []string `json:"images" validate:"omitempty,dive,required"`
}

// ApplyTo merges the supplied fields onto a loaded product. Images are not
// touched here, see ReplacesImages.
func (in UpdateProductInput) ApplyTo(p *Product) {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Sizes != nil {
		p.Sizes = datatypes.NewJSONSlice(in.Sizes)
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.Tags != nil {
		p.Tags = datatypes.NewJSONSlice(in.Tags)
	}
}

// ReplacesImages reports whether the update carries a new image list.
func (in UpdateProductInput) ReplacesImages() bool {
	return in.Images != nil
}

// Pagination selects a page of products.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ProductView is a product with its images flattened to URLs.
type ProductView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Description *string  `json:"description"`
	Slug        string   `json:"slug"`
	Stock       int      `json:"stock"`
	Sizes       []string `json:"sizes"`
	Gender      string   `json:"gender"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
}

// NewProductView projects p for API consumers.
func NewProductView(p *Product) *ProductView {
	return &ProductView{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		Slug:        p.Slug,
		Stock:       p.Stock,
		Sizes:       nonNil(p.Sizes),
		Gender:      p.Gender,
		Tags:        nonNil(p.Tags),
		Images:      p.ImageURLs(),
	}
}

// NewProductViews projects a page of products.
func NewProductViews(products []Product) []*ProductView {
	views := make([]*ProductView, len(products))
	for i := range products {
		views[i] = NewProductView(&products[i])
	}
	return views
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
