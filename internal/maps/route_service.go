package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"
)

var (
	ErrNoRoute    = errors.New("no route found")
	ErrBadAddress = errors.New("origin and destination are required")
)

// Route is the driving leg between two addresses.
type Route struct {
	DistanceKm float64       `json:"distance_km"`
	Duration   time.Duration `json:"-"`
	Summary    string        `json:"summary"`
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
// Extra client options (e.g. maps.WithBaseURL) are passed through.
func NewRouteService(apiKey string, opts ...maps.ClientOption) (*RouteService, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route returns the first driving leg from origin to destination, biased to New York.
func (s *RouteService) Route(ctx context.Context, origin, destination string) (Route, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return Route{}, ErrBadAddress
	}
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
		Units:       maps.UnitsMetric,
		Language:    "en",
		Region:      "us",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	if leg.Distance.Meters <= 0 {
		return Route{}, ErrNoRoute
	}
	return Route{
		DistanceKm: float64(leg.Distance.Meters) / 1000,
		Duration:   leg.Duration,
		Summary:    routes[0].Summary,
	}, nil
}

// DistanceKm is Route(...).DistanceKm.
func (s *RouteService) DistanceKm(ctx context.Context, origin, destination string) (float64, error) {
	r, err := s.Route(ctx, origin, destination)
	if err != nil {
		return 0, err
	}
	return r.DistanceKm, nil
}
