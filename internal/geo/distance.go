// Package geo holds the small amount of spherical geometry needed for
// nearest-station lookups.
package geo

import "math"

const earthRadiusMeters = 6_371_000

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBoxRadius returns the degree offsets (latDeg, lonDeg) that enclose
// a circle of radiusMeters around a point at the given latitude.
func BoundingBoxRadius(lat, radiusMeters float64) (latDeg, lonDeg float64) {
	latDeg = radiusMeters / earthRadiusMeters * (180 / math.Pi)
	lonDeg = latDeg / math.Cos(toRad(lat))
	return latDeg, lonDeg
}

// ValidCoordinate reports whether lat/lon fall in their legal ranges.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
