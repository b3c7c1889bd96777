package repositories

import (
	"context"

	"catalog/internal/models"
)

// ProductRepository defines the interface for product data access.
// Every method that returns products returns them with their images loaded.
type ProductRepository interface {
	FindPage(ctx context.Context, limit, offset int) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByTitleOrSlug(ctx context.Context, term string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// Update saves product. When replaceImages is true the stored images are
	// replaced by product.Images in the same transaction.
	Update(ctx context.Context, product *models.Product, replaceImages bool) error
	Delete(ctx context.Context, id string) error
	DeleteAllImages(ctx context.Context) (int64, error)
}

var (
	_ ProductRepository = (*GORMProductRepository)(nil)
	_ ProductRepository = (*InMemoryProductRepository)(nil)
)
