package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Routing keys of catalog events.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
	EventImagesPurged   = "product.images.purged"
)

// EventPublisher sends a message to the catalog exchange under routingKey.
type EventPublisher interface {
	Publish(routingKey string, body []byte) error
}

// ProductEvent is the body of every catalog event.
type ProductEvent struct {
	Event      string    `json:"event"`
	ProductID  string    `json:"product_id,omitempty"`
	Slug       string    `json:"slug,omitempty"`
	Title      string    `json:"title,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publish never fails the caller: the write it describes is already committed.
func (s *ProductService) publish(ctx context.Context, event ProductEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()

	body, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to marshal catalog event",
			slog.String("event", event.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.publisher.Publish(event.Event, body); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish catalog event",
			slog.String("event", event.Event),
			slog.String("product_id", event.ProductID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.DebugContext(ctx, "Published catalog event",
		slog.String("event", event.Event),
		slog.String("product_id", event.ProductID),
	)
}
