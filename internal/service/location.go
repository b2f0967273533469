package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
)

// ErrNotDelivering is returned for samples of an order that is not out for
// delivery. It is a validation error.
var ErrNotDelivering = fmt.Errorf("%w: order is not out for delivery", ErrValidation)

type LocationService struct {
	locations repository.LocationRepository
	orders    repository.OrderRepository
	notifier  *Notifier
	logger    *zap.Logger
}

func NewLocationService(locations repository.LocationRepository, orders repository.OrderRepository, notifier *Notifier, logger *zap.Logger) *LocationService {
	return &LocationService{
		locations: locations,
		orders:    orders,
		notifier:  notifier,
		logger:    logger,
	}
}

// Record appends a courier position to the order's trail.
func (s *LocationService) Record(ctx context.Context, orderID uuid.UUID, sample *models.LocationSample) error {
	if sample == nil || !sample.InRange() {
		return invalid("coordinates out of range")
	}
	if sample.Accuracy < 0 {
		return invalid("accuracy cannot be negative")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return translate(err)
	}
	if order.Status != models.StatusOutForDelivery {
		return ErrNotDelivering
	}

	sample.OrderID = orderID
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = timeNow()
	}

	if err := s.locations.Append(ctx, sample); err != nil {
		return translate(err)
	}

	s.notifier.Publish(ctx, realtime.TopicLocations, realtime.OpInsert, sample.ID.String(), order.UserID.String(), sample.RecordedAt, sample)

	return nil
}

func (s *LocationService) visibleOrder(ctx context.Context, actor auth.Principal, orderID uuid.UUID) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return translate(err)
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return nil
}

// History returns the trail oldest first, ready to draw as a polyline.
func (s *LocationService) History(ctx context.Context, actor auth.Principal, orderID uuid.UUID) ([]models.LocationSample, error) {
	if err := s.visibleOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	samples, err := s.locations.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	return samples, nil
}

func (s *LocationService) Latest(ctx context.Context, actor auth.Principal, orderID uuid.UUID) (*models.LocationSample, error) {
	if err := s.visibleOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	sample, err := s.locations.Latest(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	return sample, nil
}
