package services

import (
	"context"
	"errors"
	"log/slog"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageLimit is used when a caller does not ask for a page size.
const DefaultPageLimit = 10

// ProductService handles business logic related to products.
type ProductService struct {
	repo         repositories.ProductRepository
	publisher    EventPublisher
	tracer       trace.Tracer
	logger       *slog.Logger
	operations   metric.Int64Counter
	defaultLimit int
}

// NewProductService creates a new ProductService. publisher may be nil, in
// which case no catalog events are sent.
func NewProductService(
	repo repositories.ProductRepository,
	publisher EventPublisher,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *ProductService {
	operations, _ := meter.Int64Counter(
		"catalog.products.operations",
		metric.WithDescription("Total number of product operations"),
	)

	return &ProductService{
		repo:         repo,
		publisher:    publisher,
		tracer:       tracer,
		logger:       logger,
		operations:   operations,
		defaultLimit: DefaultPageLimit,
	}
}

// WithDefaultLimit overrides the page size used when none is requested.
func (s *ProductService) WithDefaultLimit(limit int) *ProductService {
	if limit > 0 {
		s.defaultLimit = limit
	}
	return s
}

// Create normalizes the slug and stores the product together with its images.
func (s *ProductService) Create(ctx context.Context, in models.CreateProductInput) (view *models.ProductView, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer func() { s.finish(ctx, span, "create", err) }()

	product := in.ToProduct()
	product.PrepareInsert()
	span.SetAttributes(attribute.String("product.slug", product.Slug))

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, s.handleDBError(ctx, err)
	}

	s.logger.InfoContext(ctx, "Product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
		slog.Int("images", len(product.Images)),
	)
	s.publish(ctx, ProductEvent{Event: EventProductCreated, ProductID: product.ID, Slug: product.Slug, Title: product.Title})
	return models.NewProductView(product), nil
}

// FindAll returns one page of products with their images as URLs.
func (s *ProductService) FindAll(ctx context.Context, page models.Pagination) (views []*models.ProductView, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindAll")
	defer func() { s.finish(ctx, span, "list", err) }()

	limit := page.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	span.SetAttributes(attribute.Int("page.limit", limit), attribute.Int("page.offset", offset))

	products, err := s.repo.FindPage(ctx, limit, offset)
	if err != nil {
		return nil, s.handleDBError(ctx, err)
	}
	span.SetAttributes(attribute.Int("product.count", len(products)))
	return models.NewProductViews(products), nil
}

// FindOne looks a product up by id when term is a UUID, otherwise by title
// (case-insensitive) or slug.
func (s *ProductService) FindOne(ctx context.Context, term string) (product *models.Product, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindOne")
	defer func() { s.finish(ctx, span, "read", err) }()

	return s.findOne(ctx, term)
}

// FindOnePlain is FindOne with the images flattened to URLs.
func (s *ProductService) FindOnePlain(ctx context.Context, term string) (view *models.ProductView, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindOnePlain")
	defer func() { s.finish(ctx, span, "read", err) }()

	product, err := s.findOne(ctx, term)
	if err != nil {
		return nil, err
	}
	return models.NewProductView(product), nil
}

// Update merges the supplied fields onto the stored product. A supplied image
// list replaces all existing images atomically.
func (s *ProductService) Update(ctx context.Context, id string, in models.UpdateProductInput) (view *models.ProductView, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer func() { s.finish(ctx, span, "update", err) }()

	span.SetAttributes(
		attribute.String("product.id", id),
		attribute.Bool("product.replace_images", in.ReplacesImages()),
	)

	if canonical, ok := parseID(id); ok {
		id = canonical
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, s.handleDBError(ctx, err)
	}

	in.ApplyTo(product)
	product.PrepareUpdate()
	if in.ReplacesImages() {
		product.Images = models.NewProductImages(in.Images)
	}

	if err := s.repo.Update(ctx, product, in.ReplacesImages()); err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, notFound(id)
		}
		return nil, s.handleDBError(ctx, err)
	}

	s.logger.InfoContext(ctx, "Product updated",
		slog.String("product_id", id),
		slog.Bool("images_replaced", in.ReplacesImages()),
	)
	s.publish(ctx, ProductEvent{Event: EventProductUpdated, ProductID: product.ID, Slug: product.Slug, Title: product.Title})

	stored, err := s.findOne(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewProductView(stored), nil
}

// Remove deletes the product matched by FindOne; its images go with it.
func (s *ProductService) Remove(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Remove")
	defer func() { s.finish(ctx, span, "delete", err) }()

	product, err := s.findOne(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, product.ID); err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return notFound(id)
		}
		return s.handleDBError(ctx, err)
	}

	s.logger.InfoContext(ctx, "Product removed", slog.String("product_id", product.ID))
	s.publish(ctx, ProductEvent{Event: EventProductDeleted, ProductID: product.ID, Slug: product.Slug, Title: product.Title})
	return nil
}

// DeleteAll removes every product image row and reports how many went.
// Product rows are left in place.
func (s *ProductService) DeleteAll(ctx context.Context) (deleted int64, err error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.DeleteAll")
	defer func() { s.finish(ctx, span, "delete_all", err) }()

	deleted, err = s.repo.DeleteAllImages(ctx)
	if err != nil {
		return 0, s.handleDBError(ctx, err)
	}

	s.logger.InfoContext(ctx, "Product images purged", slog.Int64("deleted", deleted))
	s.publish(ctx, ProductEvent{Event: EventImagesPurged, Count: deleted})
	return deleted, nil
}

func (s *ProductService) findOne(ctx context.Context, term string) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	if id, ok := parseID(term); ok {
		product, err = s.repo.FindByID(ctx, id)
	} else {
		product, err = s.repo.FindByTitleOrSlug(ctx, term)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrRecordNotFound) {
			return nil, notFound(term)
		}
		return nil, s.handleDBError(ctx, err)
	}
	return product, nil
}

// finish closes the operation span and counts the outcome.
func (s *ProductService) finish(ctx context.Context, span trace.Span, operation string, err error) {
	defer span.End()

	result := "success"
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, ErrProductNotFound):
		result = "not_found"
		span.SetStatus(codes.Error, err.Error())
	case isConflict(err):
		result = "conflict"
		span.SetStatus(codes.Error, err.Error())
	default:
		result = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if s.operations != nil {
		s.operations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		))
	}
}

func isConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// parseID accepts the 36 character form in any letter case and returns it
// lowercased, the way ids are stored.
func parseID(term string) (string, bool) {
	if len(term) != 36 {
		return "", false
	}
	id, err := uuid.Parse(term)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
