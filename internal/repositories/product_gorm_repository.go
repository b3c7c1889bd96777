package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// updatableColumns are written on every update; id and created_at never change.
var updatableColumns = []string{
	"title", "price", "description", "slug", "stock", "sizes", "gender", "tags", "updated_at",
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// FindPage retrieves one page of products ordered by primary key.
func (r *GORMProductRepository) FindPage(ctx context.Context, limit, offset int) ([]models.Product, error) {
	db := r.db.WithContext(ctx)

	var products []models.Product
	if err := db.Order("id").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get products page: %w", err)
	}
	if err := loadImages(db, products); err != nil {
		return nil, err
	}
	return products, nil
}

// FindByID retrieves a single product by its ID.
func (r *GORMProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	return r.findOne(ctx, fmt.Sprintf("product with ID %s", id), "id = ?", id)
}

// FindByTitleOrSlug matches the title case-insensitively or the slug exactly.
// Both title sides go through the store's LOWER so they fold the same way;
// the slug side compares against the Go-lowered term since stored slugs are
// lowered by NormalizeSlug.
func (r *GORMProductRepository) FindByTitleOrSlug(ctx context.Context, term string) (*models.Product, error) {
	return r.findOne(ctx, fmt.Sprintf("product %q", term),
		"LOWER(title) = LOWER(?) OR slug = ?", term, strings.ToLower(term))
}

func (r *GORMProductRepository) findOne(ctx context.Context, what string, query string, args ...interface{}) (*models.Product, error) {
	db := r.db.WithContext(ctx)

	var product models.Product
	if err := db.Where(query, args...).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s not found: %w", what, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}

	products := []models.Product{product}
	if err := loadImages(db, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// Create inserts the product row and its images in one transaction.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(product).Error; err != nil {
			return err
		}
		return insertImages(tx, product)
	})
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update saves the product columns. With replaceImages the old image rows are
// deleted and product.Images inserted inside the same transaction, so either
// the whole replacement is committed or nothing is.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product, replaceImages bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replaceImages {
			if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductImage{}).Error; err != nil {
				return err
			}
		}

		res := tx.Model(product).Select(updatableColumns).Omit(clause.Associations).Updates(product)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrRecordNotFound)
		}

		if replaceImages {
			return insertImages(tx, product)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// Delete removes a product and its images. The foreign key cascades as well;
// deleting the images first keeps the result independent of store settings.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrRecordNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// DeleteAllImages removes every product image row. Product rows are kept.
func (r *GORMProductRepository) DeleteAllImages(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ProductImage{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete product images: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// insertImages stamps the image rows with the owning product and inserts them.
func insertImages(tx *gorm.DB, product *models.Product) error {
	if len(product.Images) == 0 {
		product.Images = []models.ProductImage{}
		return nil
	}
	for i := range product.Images {
		if product.Images[i].ID == "" {
			product.Images[i].ID = uuid.New().String()
		}
		product.Images[i].ProductID = product.ID
		product.Images[i].Position = i
	}
	return tx.Create(&product.Images).Error
}

// loadImages fetches the images of all given products with a single query.
func loadImages(db *gorm.DB, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Images = []models.ProductImage{}
	}

	var images []models.ProductImage
	if err := db.Where("product_id IN ?", ids).Order("product_id, position").Find(&images).Error; err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	for _, img := range images {
		p := &products[index[img.ProductID]]
		p.Images = append(p.Images, img)
	}
	return nil
}
