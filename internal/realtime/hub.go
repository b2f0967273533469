package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	logger *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe creates a subscription handle. It receives nothing until Start.
func (h *Hub) Subscribe(f Filter) *Subscription {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.mu.Unlock()

	return &Subscription{
		id:     id,
		hub:    h,
		filter: f,
		ch:     make(chan Event, h.buffer),
	}
}

// Dispatch delivers e to every started subscription whose filter matches.
// A subscriber whose buffer is full loses the event.
func (h *Hub) Dispatch(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if !s.filter.Match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			n := s.dropped.Add(1)
			h.logger.Warn("realtime subscriber is slow, event dropped",
				zap.Uint64("subscription", s.id),
				zap.String("topic", string(e.Topic)),
				zap.Uint64("dropped", n),
			)
		}
	}
}

// Publish lets the hub act as an in-process Publisher.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.Dispatch(e)
	return nil
}

// Close stops every subscription, which ends the streams reading them.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Stop()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

type Subscription struct {
	id      uint64
	hub     *Hub
	filter  Filter
	ch      chan Event
	dropped atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
}

func (s *Subscription) C() <-chan Event {
	return s.ch
}

func (s *Subscription) Start() {
	s.startOnce.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		if s.stopped.Load() {
			return
		}
		s.hub.subs[s.id] = s
	})
}

// Stop unregisters the subscription and closes its channel. Safe to call
// more than once, and before Start.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		s.stopped.Store(true)
		delete(s.hub.subs, s.id)
		close(s.ch)
	})
}

func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}
