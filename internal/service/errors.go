package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"lpg-service/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNotFound           = errors.New("not found")
	ErrAuth               = errors.New("authentication failed")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrEmptySelection     = errors.New("no cart lines selected")
	ErrOrderSaveFailed    = errors.New("failed to save order")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// translate maps store errors onto the service sentinels. Errors that are
// not recognised are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var connErr *pgconn.ConnectError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidInput), errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, repository.ErrNotEnough):
		return fmt.Errorf("%w: %w", ErrInsufficientStock, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	case errors.As(err, &connErr), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
