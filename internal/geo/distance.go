// Package geo resolves Norwegian addresses to coordinates and answers
// proximity questions over them.
package geo

import "math"

const (
	// EarthRadiusM is the mean Earth radius in metres.
	EarthRadiusM = 6371e3

	metresPerDegreeLat = 111000.0
)

// Haversine returns the great-circle distance in metres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Box is a lat/lon rectangle used to prefilter candidates in SQL.
type Box struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// BoundingBox returns a box that contains every point within radiusM of (lat, lon).
func BoundingBox(lat, lon, radiusM float64) Box {
	latDelta := radiusM / metresPerDegreeLat

	cosLat := math.Cos(lat * math.Pi / 180)
	lonDelta := 180.0
	if cosLat > 1e-9 {
		lonDelta = math.Min(radiusM/(metresPerDegreeLat*cosLat), 180)
	}

	return Box{
		LatMin: math.Max(lat-latDelta, -90),
		LatMax: math.Min(lat+latDelta, 90),
		LonMin: math.Max(lon-lonDelta, -180),
		LonMax: math.Min(lon+lonDelta, 180),
	}
}

func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}
