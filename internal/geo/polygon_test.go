package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/geo"
)

func centralRussia() geo.Polygon {
	return geo.NewPolygon(
		[2]float64{35, 54},
		[2]float64{40, 54},
		[2]float64{40, 58},
		[2]float64{35, 58},
	)
}

func TestPolygonContains(t *testing.T) {
	t.Parallel()

	poly := centralRussia()
	require.NoError(t, poly.Validate())

	cases := []struct {
		name string
		pt   geo.Point
		want bool
	}{
		{"moscow", geo.Point{Lat: 55.75, Lng: 37.62}, true},
		{"just inside corner", geo.Point{Lat: 54.01, Lng: 35.01}, true},
		{"west of zone", geo.Point{Lat: 55.75, Lng: 30}, false},
		{"north of zone", geo.Point{Lat: 60, Lng: 37}, false},
		{"yekaterinburg", geo.Point{Lat: 56.84, Lng: 60.6}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, poly.Contains(tc.pt))
		})
	}
}

func TestPolygonWithHole(t *testing.T) {
	t.Parallel()

	poly := centralRussia()
	poly.Coordinates = append(poly.Coordinates, [][2]float64{
		{37, 55}, {38, 55}, {38, 56}, {37, 56}, {37, 55},
	})

	assert.False(t, poly.Contains(geo.Point{Lat: 55.5, Lng: 37.5}))
	assert.True(t, poly.Contains(geo.Point{Lat: 57, Lng: 36}))
}

func TestPolygonConcave(t *testing.T) {
	t.Parallel()

	// U shape: the notch between the arms is outside.
	poly := geo.NewPolygon(
		[2]float64{0, 0}, [2]float64{3, 0}, [2]float64{3, 3},
		[2]float64{2, 3}, [2]float64{2, 1}, [2]float64{1, 1},
		[2]float64{1, 3}, [2]float64{0, 3},
	)

	assert.True(t, poly.Contains(geo.Point{Lat: 2, Lng: 0.5}))
	assert.True(t, poly.Contains(geo.Point{Lat: 2, Lng: 2.5}))
	assert.False(t, poly.Contains(geo.Point{Lat: 2, Lng: 1.5}))
}

func TestPolygonValidate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, geo.Polygon{}.Validate(), geo.ErrEmptyPolygon)
	assert.ErrorIs(t, geo.Polygon{Coordinates: [][][2]float64{{{0, 0}, {1, 1}, {0, 0}}}}.Validate(), geo.ErrShortRing)
	assert.ErrorIs(t, geo.Polygon{Coordinates: [][][2]float64{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}}.Validate(), geo.ErrRingNotClosed)
	assert.False(t, geo.Polygon{}.Contains(geo.Point{}))
}

func TestDistance(t *testing.T) {
	t.Parallel()

	moscow := geo.Point{Lat: 55.7558, Lng: 37.6173}
	spb := geo.Point{Lat: 59.9343, Lng: 30.3351}

	assert.InDelta(t, 634, geo.Distance(moscow, spb), 5)
	assert.Zero(t, geo.Distance(moscow, moscow))
}

func TestValidCoordinates(t *testing.T) {
	t.Parallel()

	assert.True(t, geo.ValidCoordinates(90, -180))
	assert.False(t, geo.ValidCoordinates(91, 0))
	assert.False(t, geo.ValidCoordinates(0, 180.5))
}
