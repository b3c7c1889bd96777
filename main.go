package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"gorm.io/gorm"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/handlers"
	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/telemetry"
	"catalog/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Catalog service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	// --- Telemetry ---
	tel, err := telemetry.New(ctx, &cfg.Telemetry, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	// --- Storage ---
	repo, db, err := openRepository(cfg.Database, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer database.Close(db)
	}

	// --- Events ---
	var publisher services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			Queue:      cfg.RabbitMQ.Queue,
			BindingKey: cfg.RabbitMQ.BindingKey,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.Consume(logCatalogEvent(logger)); err != nil {
			logger.Warn("Failed to start RabbitMQ consumer", slog.String("error", err.Error()))
		}
	} else {
		logger.Info("RABBITMQ_URL not set, catalog events disabled")
	}

	// --- Services ---
	productService := services.NewProductService(repo, publisher, tel.Tracer(), tel.Meter(), logger).
		WithDefaultLimit(cfg.Pagination.DefaultLimit)

	if cfg.App.SeedProducts {
		seedProducts(ctx, productService, logger)
	}

	// --- HTTP ---
	app := newApp(appDeps{
		products:  handlers.NewProductHandler(productService, logger, cfg.Pagination.MaxLimit),
		logger:    logger,
		telemetry: tel,
		driver:    cfg.Database.Driver,
		db:        db,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", slog.String("port", cfg.App.Port))
		serverErr <- app.Listen(cfg.App.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down server", slog.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error during Fiber shutdown", slog.String("error", err.Error()))
	}
	logger.Info("Server gracefully stopped")
	return nil
}

// openRepository returns the configured product store. db is nil for the
// in-memory driver.
func openRepository(cfg config.DatabaseConfig, logger *slog.Logger) (repositories.ProductRepository, *gorm.DB, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Info("Using in-memory product repository")
		return repositories.NewInMemoryProductRepository(), nil, nil
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	logger.Info("Database ready", slog.String("driver", cfg.Driver))
	return repositories.NewGORMProductRepository(db), db, nil
}

type appDeps struct {
	products  *handlers.ProductHandler
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	driver    string
	db        *gorm.DB
}

// newApp builds the Fiber application with middleware and routes.
func newApp(deps appDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "catalog",
		UnescapePath: true,
	})

	// --- Middleware ---
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(deps.logger))
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.Tracing(deps.telemetry.Tracer()))
	app.Use(middleware.Duration(deps.telemetry.Meter()))

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	deps.products.RegisterRoutes(apiV1)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": deps.driver,
		}
		if deps.db != nil {
			if err := pingDatabase(c.UserContext(), deps.db); err != nil {
				status["status"] = "unhealthy"
				status["error"] = err.Error()
				return c.Status(fiber.StatusServiceUnavailable).JSON(status)
			}
		}
		return c.JSON(status)
	})

	// --- Metrics Endpoint ---
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.telemetry.Registry, promhttp.HandlerOpts{})))

	return app
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// logCatalogEvent acknowledges every catalog event after logging it.
func logCatalogEvent(logger *slog.Logger) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		logger.Info("Received catalog event",
			slog.String("routing_key", msg.RoutingKey),
			slog.String("body", string(msg.Body)),
		)
		return nil
	}
}

// seedProducts creates a few demo products when the catalog is empty.
// Products that already exist are reported and skipped.
func seedProducts(ctx context.Context, service *services.ProductService, logger *slog.Logger) {
	existing, err := service.FindAll(ctx, models.Pagination{Limit: 1})
	if err != nil {
		logger.Error("Error checking catalog before seeding", slog.String("error", err.Error()))
		return
	}
	if len(existing) > 0 {
		logger.Info("Catalog not empty, skipping seed")
		return
	}

	desc := func(s string) *string { return &s }
	products := []models.CreateProductInput{
		{
			Title:       "Men's Chill Crew Neck Sweatshirt",
			Price:       75,
			Description: desc("Introducing the Tesla Chill Collection."),
			Stock:       7,
			Sizes:       []string{"XS", "S", "M", "L", "XL", "XXL"},
			Gender:      "men",
			Tags:        []string{"sweatshirt"},
			Images:      []string{"1740176-00-A_0_2000.jpg", "1740176-00-A_1.jpg"},
		},
		{
			Title:  "Women's Cropped Puffer Jacket",
			Price:  225,
			Stock:  85,
			Sizes:  []string{"XS", "S", "M"},
			Gender: "women",
			Tags:   []string{"hoodie"},
			Images: []string{"1740535-00-A_0_2000.jpg"},
		},
		{
			Title:  "Kids Cybertruck Tee",
			Price:  30,
			Stock:  10,
			Sizes:  []string{"XS", "S", "M"},
			Gender: "kid",
			Tags:   []string{"shirt"},
		},
	}

	for _, in := range products {
		created, err := service.Create(ctx, in)
		var conflict *services.ConflictError
		switch {
		case errors.As(err, &conflict):
			logger.Info("Seed product already present", slog.String("title", in.Title))
		case err != nil:
			logger.Error("Error seeding product", slog.String("title", in.Title), slog.String("error", err.Error()))
		default:
			logger.Info("Seeded product", slog.String("title", created.Title), slog.String("product_id", created.ID))
		}
	}
}
