package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{
			name: "Times Sq to Grand Central (~1 km)",
			lat1: 40.755290, lon1: -73.987495,
			lat2: 40.751776, lon2: -73.976848,
			want: 970, delta: 30,
		},
		{
			name: "same point",
			lat1: 40.7527, lon1: -73.9772,
			lat2: 40.7527, lon2: -73.9772,
			want: 0, delta: 0.001,
		},
		{
			name: "pole to pole",
			lat1: 90, lon1: 0,
			lat2: -90, lon2: 0,
			want: math.Pi * earthRadiusMeters, delta: 1,
		},
		{
			name: "quarter of the equator",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 90,
			want: math.Pi / 2 * earthRadiusMeters, delta: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := Haversine(40.755290, -73.987495, 40.751776, -73.976848)
	b := Haversine(40.751776, -73.976848, 40.755290, -73.987495)
	assert.Equal(t, a, b)
}

func TestBoundingBoxRadius(t *testing.T) {
	latDeg, lonDeg := BoundingBoxRadius(0, 111_000)
	assert.InDelta(t, 1.0, latDeg, 0.01)
	assert.InDelta(t, 1.0, lonDeg, 0.01)

	// Longitude degrees shrink away from the equator.
	latDeg, lonDeg = BoundingBoxRadius(45, 1000)
	assert.InDelta(t, math.Sqrt(2), lonDeg/latDeg, 0.01)
}

func TestValidCoordinate(t *testing.T) {
	assert.True(t, ValidCoordinate(40.75, -73.98))
	assert.True(t, ValidCoordinate(-90, 180))
	assert.False(t, ValidCoordinate(91, 0))
	assert.False(t, ValidCoordinate(0, -181))
}
