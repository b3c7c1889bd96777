package middleware

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"catalog/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request and hands its context to the
// handlers through UserContext. Incoming traceparent headers are honoured.
func Tracing(tracer trace.Tracer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		carrier := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			carrier[strings.ToLower(string(key))] = string(value)
		})
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)
		ctx = telemetry.WithHTTPRoute(ctx, c.Path())

		ctx, span := tracer.Start(ctx, "HTTP "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.String("url.path", c.Path()),
			attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
		)
		c.SetUserContext(ctx)

		err := c.Next()

		status := statusOf(c, err)
		span.SetName("HTTP " + c.Method() + " " + c.Route().Path)
		span.SetAttributes(
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.response.status_code", status),
		)
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, utils.StatusMessage(status))
		}
		return err
	}
}

// Duration records request latency in milliseconds per route and status.
func Duration(meter metric.Meter) fiber.Handler {
	histogram, err := meter.Float64Histogram(
		"http.server.request.duration.ms",
		metric.WithDescription("HTTP server request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		histogram.Record(c.UserContext(), float64(time.Since(start).Microseconds())/1000,
			metric.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("http.route", c.Route().Path),
				attribute.Int("http.response.status_code", statusOf(c, err)),
			),
		)
		return err
	}
}

// RequestLogger writes one structured record per request. It must be the
// outermost middleware: errors from the chain are rendered here so the logged
// status matches what the client receives.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		duration := time.Since(start)
		status := c.Response().StatusCode()

		attrs := []any{
			slog.String("http.request.method", c.Method()),
			slog.String("http.route", c.Route().Path),
			slog.String("url.path", c.Path()),
			slog.String("url.query", string(c.Request().URI().QueryString())),
			slog.Int("http.response.status_code", status),
			slog.Int("http.response.body.size", len(c.Response().Body())),
			slog.String("duration", duration.String()),
			slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
			slog.String("client.address", c.IP()),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}

		level := slog.LevelInfo
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= fiber.StatusBadRequest {
			level = slog.LevelWarn
		}

		logger.Log(c.UserContext(), level, "HTTP request completed", attrs...)
		return nil
	}
}

func statusOf(c *fiber.Ctx, err error) int {
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe.Code
		}
		return fiber.StatusInternalServerError
	}
	return c.Response().StatusCode()
}
