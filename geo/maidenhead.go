// Package geo provides Maidenhead grid decoding and great-circle math used to
// place heard stations on the map and bucket them into compass sectors.
package geo

import (
	"math"
	"strings"
)

const (
	fieldLonSize    = 20.0
	fieldLatSize    = 10.0
	squareLonSize   = 2.0
	squareLatSize   = 1.0
	subLonSize      = squareLonSize / 24.0
	subLatSize      = squareLatSize / 24.0
	subCenterLon    = subLonSize / 2.0
	subCenterLat    = subLatSize / 2.0
	squareCenterLon = squareLonSize / 2.0
	squareCenterLat = squareLatSize / 2.0
)

// LatLonFromGrid returns the center lat/lon for a 4- or 6-character Maidenhead
// grid. Codes shorter than four characters, or with out-of-range letters or
// digits, return ok=false. The center of the square (or sub-square, for
// 6-character grids) is returned, never the corner.
func LatLonFromGrid(grid string) (lat float64, lon float64, ok bool) {
	g := strings.ToUpper(strings.TrimSpace(grid))
	if len(g) < 4 {
		return 0, 0, false
	}
	a, b := g[0], g[1]
	if a < 'A' || a > 'R' || b < 'A' || b > 'R' {
		return 0, 0, false
	}
	d0, d1 := g[2], g[3]
	if d0 < '0' || d0 > '9' || d1 < '0' || d1 > '9' {
		return 0, 0, false
	}
	lon = -180.0 + float64(a-'A')*fieldLonSize + float64(d0-'0')*squareLonSize
	lat = -90.0 + float64(b-'A')*fieldLatSize + float64(d1-'0')*squareLatSize
	if len(g) >= 6 {
		s0, s1 := g[4], g[5]
		if s0 < 'A' || s0 > 'X' || s1 < 'A' || s1 > 'X' {
			return 0, 0, false
		}
		lon += float64(s0-'A')*subLonSize + subCenterLon
		lat += float64(s1-'A')*subLatSize + subCenterLat
		return lat, lon, true
	}
	lon += squareCenterLon
	lat += squareCenterLat
	return lat, lon, true
}

// Grid4FromLatLon returns the 4-character Maidenhead grid for a lat/lon pair.
// It returns false when coordinates are out of range or non-finite.
func Grid4FromLatLon(lat, lon float64) (string, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}
	if lat == 90 {
		lat = 89.999999
	}
	if lon == 180 {
		lon = 179.999999
	}
	adjLon := lon + 180
	adjLat := lat + 90
	fieldLon := int(adjLon / fieldLonSize)
	fieldLat := int(adjLat / fieldLatSize)
	if fieldLon < 0 || fieldLon >= 18 || fieldLat < 0 || fieldLat >= 18 {
		return "", false
	}
	squareLon := int((adjLon - float64(fieldLon)*fieldLonSize) / squareLonSize)
	squareLat := int((adjLat - float64(fieldLat)*fieldLatSize) / squareLatSize)
	if squareLon < 0 || squareLon >= 10 || squareLat < 0 || squareLat >= 10 {
		return "", false
	}
	return string([]byte{
		byte('A' + fieldLon),
		byte('A' + fieldLat),
		byte('0' + squareLon),
		byte('0' + squareLat),
	}), true
}
