// Package geo holds the small amount of plane and sphere geometry needed for
// delivery zone lookup.
package geo

import (
	"errors"
	"math"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is a GeoJSON Polygon geometry. Positions are [lng, lat]; the first
// ring is the outer boundary and any further rings are holes.
type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

var (
	ErrEmptyPolygon  = errors.New("polygon has no rings")
	ErrShortRing     = errors.New("polygon ring needs at least 4 positions")
	ErrRingNotClosed = errors.New("polygon ring is not closed")
)

// NewPolygon builds a single-ring polygon from [lng, lat] positions, closing
// the ring when the caller did not.
func NewPolygon(ring ...[2]float64) Polygon {
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return Polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

// Empty reports whether the polygon carries no boundary.
func (p Polygon) Empty() bool {
	return len(p.Coordinates) == 0 || len(p.Coordinates[0]) == 0
}

// Validate checks the ring structure.
func (p Polygon) Validate() error {
	if len(p.Coordinates) == 0 {
		return ErrEmptyPolygon
	}
	for _, ring := range p.Coordinates {
		if len(ring) < 4 {
			return ErrShortRing
		}
		if ring[0] != ring[len(ring)-1] {
			return ErrRingNotClosed
		}
	}
	return nil
}

// Contains reports whether pt lies inside the outer ring and outside every
// hole. Points exactly on an edge may fall either way.
func (p Polygon) Contains(pt Point) bool {
	if p.Empty() {
		return false
	}
	if !ringContains(p.Coordinates[0], pt) {
		return false
	}
	for _, hole := range p.Coordinates[1:] {
		if ringContains(hole, pt) {
			return false
		}
	}
	return true
}

// ringContains is the even-odd ray casting test with x = lng, y = lat.
func ringContains(ring [][2]float64, pt Point) bool {
	x, y := pt.Lng, pt.Lat
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ValidCoordinates reports whether lat/lng are inside the WGS84 range.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Distance returns the haversine distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
