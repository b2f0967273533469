package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustEvent(t *testing.T, topic Topic, op Op, id, scope string, at time.Time, row any) Event {
	t.Helper()
	e, err := NewEvent(topic, op, id, scope, at, row)
	require.NoError(t, err)
	return e
}

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case e := <-s.C():
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestFilterMatch(t *testing.T) {
	now := time.Now()
	product := mustEvent(t, TopicProducts, OpUpdate, "p1", "", now, nil)
	cartA := mustEvent(t, TopicCart, OpInsert, "c1", "user-a", now, nil)
	cartB := mustEvent(t, TopicCart, OpInsert, "c2", "user-b", now, nil)

	all := Filter{}
	assert.True(t, all.Match(product))
	assert.True(t, all.Match(cartA))

	userA := Filter{Topics: []Topic{TopicCart, TopicProducts}, Scope: "user-a"}
	assert.True(t, userA.Match(product))
	assert.True(t, userA.Match(cartA))
	assert.False(t, userA.Match(cartB))

	onlyOrders := Filter{Topics: []Topic{TopicOrders}}
	assert.False(t, onlyOrders.Match(product))
}

func TestHubDeliversOnlyAfterStart(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	sub := hub.Subscribe(Filter{Topics: []Topic{TopicProducts}})

	hub.Dispatch(mustEvent(t, TopicProducts, OpInsert, "p1", "", time.Now(), nil))
	assertNoEvent(t, sub)
	assert.Equal(t, 0, hub.Len())

	sub.Start()
	sub.Start()
	assert.Equal(t, 1, hub.Len())

	hub.Dispatch(mustEvent(t, TopicProducts, OpInsert, "p2", "", time.Now(), nil))
	assert.Equal(t, "p2", receive(t, sub).RowID)
}

func TestSubscriptionStopIsIdempotentAndCloses(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	sub := hub.Subscribe(Filter{})
	sub.Start()

	sub.Stop()
	sub.Stop()

	assert.Equal(t, 0, hub.Len())
	_, ok := <-sub.C()
	assert.False(t, ok)

	// dispatching after stop must not panic on the closed channel
	hub.Dispatch(mustEvent(t, TopicOrders, OpUpdate, "o1", "", time.Now(), nil))
}

func TestStopBeforeStartNeverRegisters(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	sub := hub.Subscribe(Filter{})
	sub.Stop()
	sub.Start()
	assert.Equal(t, 0, hub.Len())
}

func TestNoLeakAcrossManySubscriptions(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	for i := 0; i < 100; i++ {
		sub := hub.Subscribe(Filter{})
		sub.Start()
		sub.Stop()
	}
	assert.Equal(t, 0, hub.Len())
}

func TestHubCloseEndsEverySubscription(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	a, b := hub.Subscribe(Filter{}), hub.Subscribe(Filter{Topics: []Topic{TopicOrders}})
	a.Start()
	b.Start()

	hub.Close()

	_, ok := <-a.C()
	assert.False(t, ok)
	_, ok = <-b.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
	b.Stop()
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	sub := hub.Subscribe(Filter{})
	sub.Start()
	defer sub.Stop()

	for i := 0; i < 3; i++ {
		hub.Dispatch(mustEvent(t, TopicProducts, OpUpdate, "p1", "", time.Now(), nil))
	}

	assert.Equal(t, uint64(2), sub.Dropped())
}

type row struct {
	Name string `json:"name"`
}

func TestCollectionLastWriteWins(t *testing.T) {
	c := NewCollection[row]()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	applied, err := c.Apply(mustEvent(t, TopicProducts, OpInsert, "p1", "", t0, row{"v1"}))
	require.NoError(t, err)
	assert.True(t, applied)

	// newer update delivered before an older one
	applied, err = c.Apply(mustEvent(t, TopicProducts, OpUpdate, "p1", "", t0.Add(2*time.Second), row{"v3"}))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = c.Apply(mustEvent(t, TopicProducts, OpUpdate, "p1", "", t0.Add(time.Second), row{"v2"}))
	require.NoError(t, err)
	assert.False(t, applied)

	got, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "v3", got.Name)
}

func TestCollectionDeleteIsNotRevivedByStaleUpdate(t *testing.T) {
	c := NewCollection[row]()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	c.Put("p1", row{"v1"}, t0)
	_, err := c.Apply(mustEvent(t, TopicProducts, OpDelete, "p1", "", t0.Add(2*time.Second), nil))
	require.NoError(t, err)

	applied, err := c.Apply(mustEvent(t, TopicProducts, OpUpdate, "p1", "", t0.Add(time.Second), row{"stale"}))
	require.NoError(t, err)
	assert.False(t, applied)

	_, ok := c.Get("p1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCollectionSnapshotOrder(t *testing.T) {
	c := NewCollection[row]()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	c.Put("a", row{"a"}, t0)
	c.Put("b", row{"b"}, t0.Add(time.Minute))
	c.Put("c", row{"c"}, t0.Add(-time.Minute))

	assert.Equal(t, []row{{"b"}, {"a"}, {"c"}}, c.Snapshot())
}

func TestCollectionRejectsMalformedPayload(t *testing.T) {
	c := NewCollection[row]()
	e := Event{Topic: TopicProducts, Op: OpUpdate, RowID: "p1", UpdatedAt: time.Now(), Payload: json.RawMessage(`{"name": 5}`)}

	_, err := c.Apply(e)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestDecodeEvent(t *testing.T) {
	good := mustEvent(t, TopicOrders, OpUpdate, "o1", "u1", time.Now(), map[string]string{"status": "confirmed"})
	data, err := json.Marshal(good)
	require.NoError(t, err)

	got, err := decodeEvent("lpg", "lpg:orders", data)
	require.NoError(t, err)
	assert.Equal(t, "o1", got.RowID)
	assert.Equal(t, "u1", got.Scope)

	var bad *MalformedEventError

	_, err = decodeEvent("lpg", "lpg:products", data)
	assert.ErrorAs(t, err, &bad)

	_, err = decodeEvent("lpg", "lpg:orders", []byte("not json"))
	assert.ErrorAs(t, err, &bad)

	_, err = decodeEvent("lpg", "lpg:orders", []byte(`{"topic":"orders","op":"update"}`))
	assert.ErrorAs(t, err, &bad)
}

type fakeFeed struct {
	events []Event
	err    error
	closed bool
	mu     *sync.Mutex
}

func (f *fakeFeed) Next(ctx context.Context) (Event, error) {
	f.mu.Lock()
	if len(f.events) > 0 {
		e := f.events[0]
		f.events = f.events[1:]
		f.mu.Unlock()
		return e, nil
	}
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return Event{}, err
	}
	<-ctx.Done()
	return Event{}, ctx.Err()
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	results []func() (Feed, error)
	opens   int
}

func (o *fakeOpener) Open(ctx context.Context) (Feed, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.opens
	o.opens++
	if i >= len(o.results) {
		i = len(o.results) - 1
	}
	return o.results[i]()
}

func TestRelayReconnectsAndDispatches(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()

	first := &fakeFeed{
		mu:     &mu,
		events: []Event{mustEvent(t, TopicProducts, OpUpdate, "p1", "", now, nil)},
		err:    errors.New("connection reset"),
	}
	second := &fakeFeed{
		mu:     &mu,
		events: []Event{mustEvent(t, TopicProducts, OpUpdate, "p2", "", now, nil)},
	}

	opener := &fakeOpener{results: []func() (Feed, error){
		func() (Feed, error) { return nil, errors.New("redis down") },
		func() (Feed, error) { return first, nil },
		func() (Feed, error) { return second, nil },
	}}

	hub := NewHub(8, zap.NewNop())
	sub := hub.Subscribe(Filter{})
	sub.Start()
	defer sub.Stop()

	relay := NewRelay(opener, hub, zap.NewNop(), 0)
	relay.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	assert.Equal(t, "p1", receive(t, sub).RowID)
	assert.Equal(t, "p2", receive(t, sub).RowID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestRelaySkipsMalformedEvents(t *testing.T) {
	var mu sync.Mutex
	feed := &fakeFeed{mu: &mu}
	opener := &fakeOpener{results: []func() (Feed, error){
		func() (Feed, error) { return &malformedThenFeed{inner: feed, sent: false}, nil },
	}}
	mu.Lock()
	feed.events = []Event{mustEvent(t, TopicOrders, OpInsert, "o1", "", time.Now(), nil)}
	mu.Unlock()

	hub := NewHub(8, zap.NewNop())
	sub := hub.Subscribe(Filter{})
	sub.Start()
	defer sub.Stop()

	relay := NewRelay(opener, hub, zap.NewNop(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	assert.Equal(t, "o1", receive(t, sub).RowID)
}

type malformedThenFeed struct {
	inner *fakeFeed
	sent  bool
}

func (m *malformedThenFeed) Next(ctx context.Context) (Event, error) {
	if !m.sent {
		m.sent = true
		return Event{}, &MalformedEventError{Channel: "lpg:orders", Err: errors.New("bad json")}
	}
	return m.inner.Next(ctx)
}

func (m *malformedThenFeed) Close() error {
	return m.inner.Close()
}
