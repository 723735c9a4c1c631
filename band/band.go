// Package band maps frequencies to amateur radio band names and carries the
// small amount of per-band metadata the comparison reports need.
package band

import "fmt"

// Info describes an amateur radio band by name and frequency range in MHz.
type Info struct {
	Name string  // canonical band name (e.g., "20m")
	Min  float64 // minimum frequency in MHz
	Max  float64 // maximum frequency in MHz
}

var bandTable = []Info{
	{Name: "160m", Min: 1.8, Max: 2.0},
	{Name: "80m", Min: 3.5, Max: 4.0},
	{Name: "60m", Min: 5.3, Max: 5.4},
	{Name: "40m", Min: 7.0, Max: 7.3},
	{Name: "30m", Min: 10.1, Max: 10.15},
	{Name: "20m", Min: 14.0, Max: 14.35},
	{Name: "17m", Min: 18.068, Max: 18.168},
	{Name: "15m", Min: 21.0, Max: 21.45},
	{Name: "12m", Min: 24.89, Max: 24.99},
	{Name: "10m", Min: 28.0, Max: 29.7},
	{Name: "6m", Min: 50.0, Max: 54.0},
	{Name: "2m", Min: 144.0, Max: 148.0},
}

// WSPR dial frequencies in Hz, per band.
var wsprFreqs = map[string]int{
	"160m": 1838100,
	"80m":  3570100,
	"40m":  7040100,
	"30m":  10140200,
	"20m":  14097100,
	"17m":  18106100,
	"15m":  21096100,
	"12m":  24926100,
	"10m":  28126100,
	"6m":   50294500,
}

// FromFrequency converts a frequency in MHz to a band name. Frequencies
// outside every known band fall back to a formatted frequency string so
// out-of-band decodes still group deterministically.
func FromFrequency(freqMHz float64) string {
	for _, entry := range bandTable {
		if freqMHz >= entry.Min && freqMHz <= entry.Max {
			return entry.Name
		}
	}
	return fmt.Sprintf("%.3fMHz", freqMHz)
}

// SortKey returns the lower band edge for known bands and a large sentinel for
// fallback names, so reports list bands in ascending frequency order with
// unknowns last.
func SortKey(name string) float64 {
	for _, entry := range bandTable {
		if entry.Name == name {
			return entry.Min
		}
	}
	return 999
}

// WSPRFrequency returns the WSPR dial frequency in Hz for a band, or 0 when
// the band has no WSPR allocation.
func WSPRFrequency(name string) int {
	return wsprFreqs[name]
}

// IsWARC reports whether the band is a WARC band (no contest activity).
func IsWARC(name string) bool {
	switch name {
	case "30m", "17m", "12m", "60m":
		return true
	}
	return false
}

// Names returns the canonical names of all tracked bands in ascending
// frequency order.
func Names() []string {
	names := make([]string, len(bandTable))
	for i, entry := range bandTable {
		names[i] = entry.Name
	}
	return names
}
