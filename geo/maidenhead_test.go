package geo

import (
	"math"
	"testing"
)

func TestLatLonFromGridSquareCenter(t *testing.T) {
	lat, lon, ok := LatLonFromGrid("CM98")
	if !ok {
		t.Fatalf("LatLonFromGrid(CM98) ok = false, want true")
	}
	// Field C = lon -140..-120, field M = lat 30..40; square 9,8 with centers.
	if math.Abs(lon-(-121.0)) > 1e-9 {
		t.Fatalf("LatLonFromGrid(CM98) lon = %v, want -121", lon)
	}
	if math.Abs(lat-38.5) > 1e-9 {
		t.Fatalf("LatLonFromGrid(CM98) lat = %v, want 38.5", lat)
	}
}

func TestLatLonFromGridSubSquareCenter(t *testing.T) {
	lat4, lon4, _ := LatLonFromGrid("CM98")
	lat6, lon6, ok := LatLonFromGrid("cm98kq")
	if !ok {
		t.Fatalf("LatLonFromGrid(cm98kq) ok = false, want true")
	}
	// Sub-square center must stay inside the parent square.
	if math.Abs(lat6-lat4) > 0.5 || math.Abs(lon6-lon4) > 1.0 {
		t.Fatalf("6-char center (%v,%v) not inside square centered at (%v,%v)", lat6, lon6, lat4, lon4)
	}
}

func TestLatLonFromGridRejectsShortAndMalformed(t *testing.T) {
	cases := []string{"", "CM", "CM9", "ZZ98", "CMXX", "CM98zz"}
	for _, grid := range cases {
		if _, _, ok := LatLonFromGrid(grid); ok {
			t.Fatalf("LatLonFromGrid(%q) ok = true, want false", grid)
		}
	}
}

func TestGridRoundTripAtFourCharPrecision(t *testing.T) {
	grids := []string{"CM98", "JN76", "FN31", "QF56", "AA00", "RR99"}
	for _, grid := range grids {
		lat, lon, ok := LatLonFromGrid(grid)
		if !ok {
			t.Fatalf("LatLonFromGrid(%q) ok = false, want true", grid)
		}
		got, ok := Grid4FromLatLon(lat, lon)
		if !ok {
			t.Fatalf("Grid4FromLatLon(%v, %v) ok = false, want true", lat, lon)
		}
		if got != grid {
			t.Fatalf("round trip of %q = %q", grid, got)
		}
	}
}

func TestBearingCardinalDirections(t *testing.T) {
	if got := Bearing(0, 0, 0, 90); math.Abs(got-90) > 0.01 {
		t.Fatalf("Bearing(0,0,0,90) = %v, want 90", got)
	}
	if got := Bearing(0, 0, 45, 0); math.Abs(got-0) > 0.01 {
		t.Fatalf("Bearing(0,0,45,0) = %v, want 0", got)
	}
	// Antipodal longitude on the equator takes the shorter eastward path.
	if got := Bearing(0, 0, 0, 180); math.Abs(got-90) > 0.01 {
		t.Fatalf("Bearing(0,0,0,180) = %v, want 90", got)
	}
}

func TestDistanceKmQuarterAndHalfCircumference(t *testing.T) {
	if got := DistanceKm(0, 0, 0, 90); math.Abs(got-10018) > 100 {
		t.Fatalf("DistanceKm(0,0,0,90) = %v, want ~10018", got)
	}
	if got := DistanceKm(0, 0, 0, 180); math.Abs(got-20015) > 100 {
		t.Fatalf("DistanceKm(0,0,0,180) = %v, want ~20015", got)
	}
}

func TestSectorBuckets(t *testing.T) {
	cases := []struct {
		bearing float64
		want    string
	}{
		{0, "N"},
		{360, "N"},
		{45, "NE"},
		{90, "E"},
		{22.5, "NE"}, // exact midpoint rounds to the higher-index neighbor
		{337.5, "N"},
		{337.4, "NW"},
		{180, "S"},
		{270, "W"},
	}
	for _, tc := range cases {
		if got := Sector(tc.bearing); got != tc.want {
			t.Fatalf("Sector(%v) = %q, want %q", tc.bearing, got, tc.want)
		}
	}
}
