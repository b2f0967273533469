package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Relay pumps events from the broker into the hub and resubscribes with
// exponential backoff whenever the feed breaks.
type Relay struct {
	opener     FeedOpener
	hub        *Hub
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewRelay retries forever when maxElapsed is zero.
func NewRelay(opener FeedOpener, hub *Hub, logger *zap.Logger, maxElapsed time.Duration) *Relay {
	return &Relay{
		opener: opener,
		hub:    hub,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

// Run blocks until ctx is cancelled (returning nil) or reconnection gives up.
func (r *Relay) Run(ctx context.Context) error {
	b := r.newBackOff()

	op := func() error {
		feed, err := r.opener.Open(ctx)
		if err != nil {
			return err
		}
		defer feed.Close()

		b.Reset()
		r.logger.Info("realtime relay subscribed")

		for {
			e, err := feed.Next(ctx)
			if err != nil {
				var bad *MalformedEventError
				if errors.As(err, &bad) {
					r.logger.Warn("dropping malformed realtime event", zap.String("channel", bad.Channel), zap.Error(bad.Err))
					continue
				}
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			r.hub.Dispatch(e)
		}
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("realtime feed lost, resubscribing", zap.Error(err), zap.Duration("backoff", wait))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		r.logger.Error("realtime relay gave up", zap.Error(err))
	}
	return err
}
