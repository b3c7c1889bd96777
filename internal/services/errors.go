package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"catalog/internal/repositories"
)

var (
	// ErrProductNotFound is returned when no product matches an id, title or slug.
	ErrProductNotFound = errors.New("product not found")
	// ErrInternal hides unexpected store failures from callers; the cause is logged.
	ErrInternal = errors.New("unexpected error, check server logs")
)

// ConflictError reports a unique constraint violation on title or slug.
type ConflictError struct {
	Detail string
	Err    error
}

func (e *ConflictError) Error() string {
	return e.Detail
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func notFound(term string) error {
	return fmt.Errorf("%w: %s", ErrProductNotFound, term)
}

// handleDBError is the single translation point for store failures.
func (s *ProductService) handleDBError(ctx context.Context, err error) error {
	if detail, ok := repositories.UniqueViolation(err); ok {
		return &ConflictError{Detail: detail, Err: err}
	}
	s.logger.ErrorContext(ctx, "Unexpected database error",
		slog.String("error", err.Error()),
	)
	return ErrInternal
}
