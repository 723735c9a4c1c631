package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Bearing returns the initial great-circle bearing from point 1 to point 2 in
// degrees, normalized to [0, 360) with 0 meaning geographic north.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	x := math.Sin(dlon) * math.Cos(rlat2)
	y := math.Cos(rlat1)*math.Sin(rlat2) - math.Sin(rlat1)*math.Cos(rlat2)*math.Cos(dlon)
	deg := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// DistanceKm returns the haversine great-circle distance in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Sectors lists the 8 compass octants in bucket order.
var Sectors = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Sector buckets a bearing into one of the 8 compass octants. Buckets are 45
// degrees wide and centered on the octant headings, so a bearing exactly
// between two octants rounds to the higher-index neighbor and 360 wraps to N.
func Sector(bearing float64) string {
	idx := int(math.Round(bearing/45)) % 8
	return Sectors[idx]
}
