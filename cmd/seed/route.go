package main

import (
	"context"
	"sync"
	"time"

	"lpg-service/internal/service"
)

// depotRoute is a short drive out of the depot, each stop a few hundred
// metres from the last.
var depotRoute = []service.Position{
	{Latitude: 14.5995, Longitude: 120.9842, Accuracy: 8},
	{Latitude: 14.6021, Longitude: 120.9868, Accuracy: 6},
	{Latitude: 14.6050, Longitude: 120.9890, Accuracy: 5},
	{Latitude: 14.6083, Longitude: 120.9915, Accuracy: 5},
}

// routeSource replays a fixed route as the courier device. Once the route
// is used up it keeps reporting the last stop.
type routeSource struct {
	mu    sync.Mutex
	stops []service.Position
	next  int
}

func newRouteSource(stops []service.Position) *routeSource {
	return &routeSource{stops: stops}
}

func (s *routeSource) Permission(context.Context) error {
	return nil
}

func (s *routeSource) CurrentPosition(context.Context) (service.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.next
	if i >= len(s.stops) {
		i = len(s.stops) - 1
	} else {
		s.next++
	}

	pos := s.stops[i]
	pos.At = time.Now().UTC()
	return pos, nil
}
