package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpg-service/internal/models"
)

var ErrTrackerRunning = errors.New("tracker already started")

type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	At        time.Time
}

// PositionSource is the courier device. Permission is checked before every
// read because the user can revoke it at any time.
type PositionSource interface {
	Permission(ctx context.Context) error
	CurrentPosition(ctx context.Context) (Position, error)
}

type LocationRecorder interface {
	Record(ctx context.Context, orderID uuid.UUID, sample *models.LocationSample) error
}

type TrackerConfig struct {
	Interval    time.Duration
	MinDistance float64 // metres
}

// Tracker samples a PositionSource on an interval and records the
// positions for one order. Samples closer than MinDistance to the last
// recorded one are skipped. Tracking ends on Stop, when permission is
// denied, or once the order is no longer out for delivery.
type Tracker struct {
	source   PositionSource
	recorder LocationRecorder
	orderID  uuid.UUID
	cfg      TrackerConfig
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	last    *Position
}

func NewTracker(source PositionSource, recorder LocationRecorder, orderID uuid.UUID, cfg TrackerConfig, logger *zap.Logger) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MinDistance < 0 {
		cfg.MinDistance = 0
	}
	return &Tracker{
		source:   source,
		recorder: recorder,
		orderID:  orderID,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrTrackerRunning
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)

	return nil
}

// Stop ends tracking and waits for the loop to exit. It is safe to call
// more than once and before Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.started {
		t.started = true
		close(t.done)
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-t.done
}

// Done is closed when tracking has ended.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Err reports why tracking ended on its own, or nil.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := t.sample(ctx); err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			t.logger.Info("location tracking stopped", zap.String("order_id", t.orderID.String()), zap.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sample returns an error only when tracking must end.
func (t *Tracker) sample(ctx context.Context) error {
	if err := t.source.Permission(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Join(ErrPermissionDenied, err)
	}

	pos, err := t.source.CurrentPosition(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("failed to read position", zap.String("order_id", t.orderID.String()), zap.Error(err))
		}
		return nil
	}

	if t.last != nil && distanceMetres(*t.last, pos) < t.cfg.MinDistance {
		return nil
	}

	sample := &models.LocationSample{
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Accuracy:   pos.Accuracy,
		RecordedAt: pos.At,
	}

	if err := t.recorder.Record(ctx, t.orderID, sample); err != nil {
		if errors.Is(err, ErrNotDelivering) {
			return err
		}
		if ctx.Err() == nil {
			t.logger.Warn("failed to record position", zap.String("order_id", t.orderID.String()), zap.Error(err))
		}
		return nil
	}

	t.last = &pos
	return nil
}

const earthRadiusMetres = 6371000

// distanceMetres is the haversine distance between two positions.
func distanceMetres(a, b Position) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMetres * math.Asin(math.Sqrt(h))
}
