package analysis

import (
	"sort"

	"antcmp/band"
	"antcmp/geo"
)

// snrVerdictDB separates "better/worse" from "similar" when comparing mean
// SNR over common stations.
const snrVerdictDB = 1.0

// reachThreshold is the proportional significance floor for reach fallback
// comparisons: a reach difference only counts when it exceeds this fraction
// of the larger reach.
const reachThreshold = 0.2

func mean(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range samples {
		sum += s
	}
	return float64(sum) / float64(len(samples))
}

// commonCalls returns the callsigns heard by every listed antenna on the
// band. An antenna with no samples on the band forces an empty intersection.
func commonCalls(samples Samples, antennas []string, bandName string) map[string]bool {
	common := make(map[string]bool)
	for i, ant := range antennas {
		calls := samples[ant][bandName]
		if len(calls) == 0 {
			return map[string]bool{}
		}
		if i == 0 {
			for call := range calls {
				common[call] = true
			}
			continue
		}
		for call := range common {
			if _, ok := calls[call]; !ok {
				delete(common, call)
			}
		}
	}
	return common
}

// commonMean is the mean SNR over exactly the common stations.
func commonMean(byCall map[string][]int, common map[string]bool) float64 {
	var all []int
	for call := range common {
		all = append(all, byCall[call]...)
	}
	return mean(all)
}

// reachSignificant reports whether the reach difference clears the
// proportional threshold: |a-b| > 0.2 * max(a, b). Guards against declaring
// a winner from single-station noise.
func reachSignificant(a, b int) bool {
	max := a
	if b > max {
		max = b
	}
	if max < 1 {
		max = 1
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) > reachThreshold*float64(max)
}

// DistanceStat summarizes great-circle distances for one antenna's stations.
type DistanceStat struct {
	AvgKm float64
	MaxKm float64
	Count int
}

// distanceStats computes per-station distances over all stations with a
// resolvable grid. Unresolvable grids are skipped, never fatal.
func distanceStats(byCall map[string][]int, resolve func(string) (float64, float64, bool), lat, lon float64) (DistanceStat, bool) {
	var stat DistanceStat
	var sum float64
	for call := range byCall {
		slat, slon, ok := resolve(call)
		if !ok {
			continue
		}
		d := geo.DistanceKm(lat, lon, slat, slon)
		sum += d
		if d > stat.MaxKm {
			stat.MaxKm = d
		}
		stat.Count++
	}
	if stat.Count == 0 {
		return DistanceStat{}, false
	}
	stat.AvgKm = sum / float64(stat.Count)
	return stat, true
}

// sortedBands orders band names by frequency, unknown bands last.
func sortedBands(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := band.SortKey(out[i]), band.SortKey(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i] < out[j]
	})
	return out
}
