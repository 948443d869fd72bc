// README: Straight-line distance between "lat,lng" coordinates; used when no Maps API key is configured.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371.0

var ErrBadCoordinate = errors.New("coordinates must be \"lat,lng\" in decimal degrees")

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// ParsePoint parses "40.7580,-73.9855".
func ParsePoint(s string) (Point, error) {
	lat, lng, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	p := Point{}
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return Point{}, fmt.Errorf("%w: %q out of range", ErrBadCoordinate, s)
	}
	return p, nil
}

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// StraightLine resolves coordinate pairs without calling any API.
type StraightLine struct{}

func (StraightLine) DistanceKm(_ context.Context, origin, destination string) (float64, error) {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return 0, ErrBadAddress
	}
	a, err := ParsePoint(origin)
	if err != nil {
		return 0, err
	}
	b, err := ParsePoint(destination)
	if err != nil {
		return 0, err
	}
	km := HaversineKm(a, b)
	if km <= 0 {
		return 0, ErrNoRoute
	}
	return km, nil
}
