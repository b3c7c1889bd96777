package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindPage(ctx context.Context, limit, offset int) ([]models.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByTitleOrSlug(ctx context.Context, term string) (*models.Product, error) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product, replaceImages bool) error {
	args := m.Called(ctx, product, replaceImages)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductRepository) DeleteAllImages(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockPublisher records catalog events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, body []byte) error {
	args := m.Called(routingKey, body)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(repo repositories.ProductRepository, publisher services.EventPublisher) *services.ProductService {
	return services.NewProductService(
		repo,
		publisher,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
		discardLogger(),
	)
}

func TestProductService_Create_DerivesSlug(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.Slug == "blue_skys" && len(p.Images) == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Product).ID = "generated"
	}).Return(nil).Once()

	view, err := service.Create(context.Background(), models.CreateProductInput{
		Title:  "Blue Sky's",
		Sizes:  []string{"M"},
		Gender: "unisex",
		Images: []string{"sky.jpg"},
	})

	require.NoError(t, err)
	assert.Equal(t, "generated", view.ID)
	assert.Equal(t, "blue_skys", view.Slug)
	assert.Equal(t, []string{"sky.jpg"}, view.Images)
	assert.Equal(t, []string{}, view.Tags)
	repo.AssertExpectations(t)
}

func TestProductService_Create_Conflict(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)

	dup := fmt.Errorf("failed to create product: %w", &repositories.DuplicateKeyError{Column: "title", Value: "Tee"})
	repo.On("Create", mock.Anything, mock.Anything).Return(dup).Once()

	_, err := service.Create(context.Background(), models.CreateProductInput{Title: "Tee", Sizes: []string{"M"}, Gender: "men"})

	var conflict *services.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Key (title)=(Tee) already exists.", conflict.Detail)
	repo.AssertExpectations(t)
}

func TestProductService_Create_InternalError(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()

	_, err := service.Create(context.Background(), models.CreateProductInput{Title: "Tee", Sizes: []string{"M"}, Gender: "men"})

	assert.ErrorIs(t, err, services.ErrInternal)
	assert.NotContains(t, err.Error(), "connection refused")
}

func TestProductService_Create_PublishesEvent(t *testing.T) {
	repo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := newService(repo, publisher)

	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Product).ID = "p-1"
	}).Return(nil).Once()
	publisher.On("Publish", services.EventProductCreated, mock.MatchedBy(func(body []byte) bool {
		var event services.ProductEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return false
		}
		return event.ProductID == "p-1" && event.Slug == "tee" && !event.OccurredAt.IsZero()
	})).Return(nil).Once()

	_, err := service.Create(context.Background(), models.CreateProductInput{Title: "Tee", Sizes: []string{"M"}, Gender: "men"})

	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestProductService_PublishFailureDoesNotFailWrite(t *testing.T) {
	repo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := newService(repo, publisher)

	repo.On("DeleteAllImages", mock.Anything).Return(int64(7), nil).Once()
	publisher.On("Publish", services.EventImagesPurged, mock.Anything).Return(errors.New("channel closed")).Once()

	deleted, err := service.DeleteAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	publisher.AssertExpectations(t)
}

func TestProductService_FindAll_DefaultsPagination(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)

	repo.On("FindPage", mock.Anything, services.DefaultPageLimit, 0).Return([]models.Product{
		{ID: "1", Title: "A", Slug: "a", Images: []models.ProductImage{{URL: "a.jpg"}}},
	}, nil).Once()

	views, err := service.FindAll(context.Background(), models.Pagination{Offset: -3})

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, []string{"a.jpg"}, views[0].Images)
	repo.AssertExpectations(t)
}

func TestProductService_FindAll_CustomDefaultLimit(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil).WithDefaultLimit(25)

	repo.On("FindPage", mock.Anything, 25, 5).Return([]models.Product{}, nil).Once()

	views, err := service.FindAll(context.Background(), models.Pagination{Offset: 5})

	require.NoError(t, err)
	assert.Empty(t, views)
	repo.AssertExpectations(t)
}

func TestProductService_FindOne_RoutesByTermShape(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)
	id := uuid.NewString()

	repo.On("FindByID", mock.Anything, id).Return(&models.Product{ID: id}, nil).Once()
	repo.On("FindByTitleOrSlug", mock.Anything, "Cool Tee").Return(&models.Product{ID: "x"}, nil).Once()
	// Not canonical: 32 hex digits without dashes
	repo.On("FindByTitleOrSlug", mock.Anything, "0123456789abcdef0123456789abcdef").Return(nil, repositories.ErrRecordNotFound).Once()

	p, err := service.FindOne(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	p, err = service.FindOne(context.Background(), "Cool Tee")
	require.NoError(t, err)
	assert.Equal(t, "x", p.ID)

	_, err = service.FindOne(context.Background(), "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	repo.AssertExpectations(t)
}

func TestProductService_FindOne_NotFoundNamesTerm(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)

	repo.On("FindByTitleOrSlug", mock.Anything, "missing").
		Return(nil, fmt.Errorf("lookup: %w", repositories.ErrRecordNotFound)).Once()

	_, err := service.FindOnePlain(context.Background(), "missing")

	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestProductService_Update_NotFound(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)
	id := uuid.NewString()

	repo.On("FindByID", mock.Anything, id).Return(nil, repositories.ErrRecordNotFound).Once()

	title := "New"
	_, err := service.Update(context.Background(), id, models.UpdateProductInput{Title: &title})

	assert.ErrorIs(t, err, services.ErrProductNotFound)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductService_Update_ReplacesImagesOnlyWhenSupplied(t *testing.T) {
	repo := new(MockProductRepository)
	service := newService(repo, nil)
	id := uuid.NewString()

	stored := func() *models.Product {
		return &models.Product{ID: id, Title: "Tee", Slug: "tee", Images: []models.ProductImage{{URL: "old.jpg"}}}
	}
	repo.On("FindByID", mock.Anything, id).Return(stored(), nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return p.Slug == "new_slug" && p.ImageURLs()[0] == "old.jpg"
	}), false).Return(nil).Once()
	repo.On("FindByID", mock.Anything, id).Return(stored(), nil).Once()

	slug := "New Slug"
	_, err := service.Update(context.Background(), id, models.UpdateProductInput{Slug: &slug})
	require.NoError(t, err)

	repo.On("FindByID", mock.Anything, id).Return(stored(), nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		return len(p.Images) == 0
	}), true).Return(nil).Once()
	repo.On("FindByID", mock.Anything, id).Return(&models.Product{ID: id, Title: "Tee", Slug: "tee"}, nil).Once()

	view, err := service.Update(context.Background(), id, models.UpdateProductInput{Images: []string{}})
	require.NoError(t, err)
	assert.Equal(t, []string{}, view.Images)

	repo.AssertExpectations(t)
}

func TestProductService_Remove(t *testing.T) {
	repo := new(MockProductRepository)
	publisher := new(MockPublisher)
	service := newService(repo, publisher)
	id := uuid.NewString()

	repo.On("FindByID", mock.Anything, id).Return(&models.Product{ID: id, Slug: "tee"}, nil).Once()
	repo.On("Delete", mock.Anything, id).Return(nil).Once()
	publisher.On("Publish", services.EventProductDeleted, mock.Anything).Return(nil).Once()

	require.NoError(t, service.Remove(context.Background(), id))

	repo.On("FindByID", mock.Anything, id).Return(nil, repositories.ErrRecordNotFound).Once()
	assert.ErrorIs(t, service.Remove(context.Background(), id), services.ErrProductNotFound)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestProductService_CountsOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	repo := new(MockProductRepository)
	service := services.NewProductService(
		repo, nil,
		tracenoop.NewTracerProvider().Tracer("test"),
		provider.Meter("test"),
		discardLogger(),
	)

	repo.On("FindByTitleOrSlug", mock.Anything, "nope").Return(nil, repositories.ErrRecordNotFound).Once()
	_, _ = service.FindOne(context.Background(), "nope")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "catalog.products.operations", m.Name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	result, _ := sum.DataPoints[0].Attributes.Value("result")
	assert.Equal(t, "not_found", result.AsString())
}
