package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog/internal/models"

	"github.com/google/uuid"
)

// InMemoryProductRepository is an in-memory implementation of ProductRepository.
// It enforces the same title and slug uniqueness as the SQL schema.
type InMemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewInMemoryProductRepository creates a new instance of InMemoryProductRepository.
func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

// FindPage returns one page of products ordered by ID.
func (r *InMemoryProductRepository) FindPage(_ context.Context, limit, offset int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.products))
	for id := range r.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	page := make([]models.Product, 0, max(0, min(limit, len(ids)-offset)))
	for i := offset; i < len(ids) && len(page) < limit; i++ {
		page = append(page, clone(r.products[ids[i]]))
	}
	return page, nil
}

// FindByID returns a product by its ID.
func (r *InMemoryProductRepository) FindByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %s not found: %w", id, ErrRecordNotFound)
	}
	p := clone(product)
	return &p, nil
}

// FindByTitleOrSlug matches the title case-insensitively or the slug exactly.
func (r *InMemoryProductRepository) FindByTitleOrSlug(_ context.Context, term string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(term)
	var match *models.Product
	for _, product := range r.products {
		if strings.ToLower(product.Title) != lowered && product.Slug != lowered {
			continue
		}
		if match == nil || product.ID < match.ID {
			p := clone(product)
			match = &p
		}
	}
	if match == nil {
		return nil, fmt.Errorf("product %q not found: %w", term, ErrRecordNotFound)
	}
	return match, nil
}

// Create adds a new product.
func (r *InMemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, ok := r.products[product.ID]; ok {
		return fmt.Errorf("failed to create product: %w", &DuplicateKeyError{Column: "id", Value: product.ID})
	}
	if err := r.checkUnique(product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	stampImages(product)
	r.products[product.ID] = clone(*product)
	return nil
}

// Update modifies an existing product. The write happens under the lock after
// every check has passed, so a failed update leaves the stored images intact.
func (r *InMemoryProductRepository) Update(_ context.Context, product *models.Product, replaceImages bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrRecordNotFound)
	}
	if err := r.checkUnique(product); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	updated := clone(*product)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	if replaceImages {
		stampImages(&updated)
	} else {
		updated.Images = existing.Images
	}
	r.products[product.ID] = updated

	product.UpdatedAt = updated.UpdatedAt
	product.Images = clone(updated).Images
	return nil
}

// Delete removes a product and its images.
func (r *InMemoryProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrRecordNotFound)
	}
	delete(r.products, id)
	return nil
}

// DeleteAllImages strips every product of its images.
func (r *InMemoryProductRepository) DeleteAllImages(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, product := range r.products {
		deleted += int64(len(product.Images))
		product.Images = []models.ProductImage{}
		r.products[id] = product
	}
	return deleted, nil
}

// checkUnique must be called with the write lock held.
func (r *InMemoryProductRepository) checkUnique(product *models.Product) error {
	for id, other := range r.products {
		if id == product.ID {
			continue
		}
		if other.Title == product.Title {
			return &DuplicateKeyError{Column: "title", Value: product.Title}
		}
		if other.Slug == product.Slug {
			return &DuplicateKeyError{Column: "slug", Value: product.Slug}
		}
	}
	return nil
}

func stampImages(product *models.Product) {
	if product.Images == nil {
		product.Images = []models.ProductImage{}
	}
	for i := range product.Images {
		if product.Images[i].ID == "" {
			product.Images[i].ID = uuid.New().String()
		}
		product.Images[i].ProductID = product.ID
		product.Images[i].Position = i
	}
}

// clone copies the slices so callers never alias stored state.
func clone(p models.Product) models.Product {
	out := p
	if p.Description != nil {
		desc := *p.Description
		out.Description = &desc
	}
	out.Sizes = append(p.Sizes[:0:0], p.Sizes...)
	out.Tags = append(p.Tags[:0:0], p.Tags...)
	out.Images = append([]models.ProductImage{}, p.Images...)
	return out
}
