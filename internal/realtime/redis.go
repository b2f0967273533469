package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Feed is an open stream of events from the broker.
type Feed interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

type FeedOpener interface {
	Open(ctx context.Context) (Feed, error)
}

// RedisBroker carries events between instances over Redis pub/sub, one
// channel per topic: "<prefix>:<topic>".
type RedisBroker struct {
	client *redis.Client
	prefix string
}

func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = "lpg"
	}
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) channel(t Topic) string {
	return b.prefix + ":" + string(t)
}

func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel(e.Topic), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Topic, err)
	}

	return nil
}

func (b *RedisBroker) Open(ctx context.Context) (Feed, error) {
	ps := b.client.PSubscribe(ctx, b.prefix+":*")

	// Wait for the subscription confirmation so connection errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s:*: %w", b.prefix, err)
	}

	return &redisFeed{ps: ps, prefix: b.prefix}, nil
}

type redisFeed struct {
	ps     *redis.PubSub
	prefix string
}

func (f *redisFeed) Next(ctx context.Context) (Event, error) {
	msg, err := f.ps.ReceiveMessage(ctx)
	if err != nil {
		return Event{}, err
	}

	return decodeEvent(f.prefix, msg.Channel, []byte(msg.Payload))
}

func (f *redisFeed) Close() error {
	return f.ps.Close()
}

// MalformedEventError is returned for messages that cannot be decoded. The
// feed itself is still usable.
type MalformedEventError struct {
	Channel string
	Err     error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event on %s: %v", e.Channel, e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

func decodeEvent(prefix, channel string, data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, &MalformedEventError{Channel: channel, Err: err}
	}

	if want := strings.TrimPrefix(channel, prefix+":"); string(e.Topic) != want {
		return Event{}, &MalformedEventError{Channel: channel, Err: fmt.Errorf("topic %q does not match channel", e.Topic)}
	}
	if _, ok := ParseTopic(string(e.Topic)); !ok {
		return Event{}, &MalformedEventError{Channel: channel, Err: fmt.Errorf("unknown topic %q", e.Topic)}
	}
	if e.RowID == "" {
		return Event{}, &MalformedEventError{Channel: channel, Err: fmt.Errorf("missing row id")}
	}

	return e, nil
}
