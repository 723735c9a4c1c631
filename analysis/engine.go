package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"antcmp/geo"
	"antcmp/session"
)

// Engine runs one comparison over collected RX and TX data. The operator
// location anchors every bearing and distance. LookupGrid and Country are
// optional enrichment hooks; a nil hook disables the feature.
type Engine struct {
	Grid string
	Lat  float64
	Lon  float64

	// LookupGrid resolves a callsign to a grid when the run's own records
	// never carried one (persistent call->grid store).
	LookupGrid func(call string) (string, bool)

	// Country resolves a callsign to its DXCC entity name.
	Country func(call string) (string, bool)
}

// Input is everything one analyze run feeds the engine. Antennas is the
// session's antenna order with the baseline (earliest interval) first.
type Input struct {
	Timeline session.Timeline
	Antennas []string
	Rx       *RxData
	Tx       *TxData

	// TxUnavailable is set when the session start predates the spot
	// service's lookback ceiling and no cache exists: TX analysis is then
	// skipped with an explicit notice instead of reporting zero stations.
	TxUnavailable bool
}

// BandScore carries the per-antenna per-band numbers the summary and the win
// tally are computed from.
type BandScore struct {
	HasRXCommon  bool
	RXDelta      float64
	RXCommon     int
	RXReach      int
	RXReachDelta int
	TXDelta      *float64
	TXReach      int
	TXReachDelta int
	RXDist       DistanceStat
	TXDist       DistanceStat
}

// AntennaBandStat is one antenna's row in a band report.
type AntennaBandStat struct {
	Antenna   string  `json:"antenna"`
	AvgSNR    float64 `json:"avg_snr"`
	DeltaDB   float64 `json:"delta_db"`
	Reach     int     `json:"reach"`
	AvgDistKm float64 `json:"avg_dist_km"`
	MaxDistKm float64 `json:"max_dist_km"`
	DistCount int     `json:"dist_count"`
}

// BandReport is the structured form of one band comparison.
type BandReport struct {
	Band           string            `json:"band"`
	Direction      string            `json:"direction"` // "rx" or "tx"
	CommonStations int               `json:"common_stations"`
	FallbackReach  bool              `json:"fallback_reach"`
	Stats          []AntennaBandStat `json:"stats"`
}

// SectorStat is one antenna's row in a sector comparison.
type SectorStat struct {
	Antenna   string  `json:"antenna"`
	Stations  int     `json:"stations"`
	AvgSNR    float64 `json:"avg_snr"`
	DeltaDB   float64 `json:"delta_db"`
	AvgDistKm float64 `json:"avg_dist_km"`
	MaxDistKm float64 `json:"max_dist_km"`
	Best      bool    `json:"best"`
}

// SectorReport is the structured form of one (band, sector) comparison.
type SectorReport struct {
	Band      string       `json:"band"`
	Sector    string       `json:"sector"`
	Direction string       `json:"direction"`
	Stats     []SectorStat `json:"stats"`
}

// MapStation is one plotted station in the map dataset.
type MapStation struct {
	Call       string  `json:"call"`
	Grid       string  `json:"grid"`
	Antenna    string  `json:"antenna"`
	Band       string  `json:"band"`
	Bearing    float64 `json:"bearing"`
	DistanceKm int     `json:"distance_km"`
	SNR        float64 `json:"snr"`
}

// MapQTH is the operator's own plotted location.
type MapQTH struct {
	Grid string  `json:"grid"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// MapData is the azimuthal-visualization dataset written alongside the
// report.
type MapData struct {
	QTH        MapQTH       `json:"qth"`
	Antennas   []string     `json:"antennas"`
	RxStations []MapStation `json:"rx_stations"`
	TxStations []MapStation `json:"tx_stations"`
}

// Wins is the per-antenna win tally behind the recommendation.
type Wins struct {
	RX int
	TX int
}

// Result is everything one comparison run produces.
type Result struct {
	Lines         []string
	BandReports   []BandReport
	SectorReports []SectorReport
	Scores        map[string]map[string]*BandScore
	WinTally      map[string]Wins
	Recommended   string // empty when inconclusive
	Inconclusive  bool
	Map           MapData
}

type reporter struct {
	lines []string
}

func (r *reporter) line(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *reporter) blank() {
	r.lines = append(r.lines, "")
}

func (r *reporter) rule(ch string) {
	n := 60
	if ch == "-" {
		n = 40
	}
	r.lines = append(r.lines, strings.Repeat(ch, n))
}

// Run executes the full comparison: RX by band, RX by sector, TX by band, TX
// by sector, then the summary and recommendation. Every emitted line is
// captured in Result.Lines for the artifact.
func (e *Engine) Run(in Input) *Result {
	res := &Result{
		Scores:   make(map[string]map[string]*BandScore),
		WinTally: make(map[string]Wins),
	}
	rep := &reporter{}

	rxResolve := e.resolver(in.Rx.Grids)

	rep.rule("=")
	rep.line("COMPARISON BY BAND (Priority 1)")
	rep.rule("=")
	for _, bandName := range sortedBands(in.Rx.Samples.bands()) {
		e.compareBand(rep, res, in.Antennas, in.Rx.Samples, rxResolve, bandName, "rx")
	}

	rep.blank()
	rep.rule("=")
	rep.line("COMPARISON BY BEARING + BAND (Priority 2)")
	rep.rule("=")
	for _, bandName := range sortedBands(in.Rx.Samples.bands()) {
		e.compareSectors(rep, res, in.Antennas, in.Rx.Samples, rxResolve, bandName, "rx")
	}

	e.runTx(rep, res, in)

	e.summarize(rep, res, in.Antennas)
	res.Lines = rep.lines
	res.Map = e.buildMap(in)
	return res
}

// score returns the mutable per-antenna per-band score cell.
func (res *Result) score(antenna, bandName string) *BandScore {
	byBand, ok := res.Scores[antenna]
	if !ok {
		byBand = make(map[string]*BandScore)
		res.Scores[antenna] = byBand
	}
	sc, ok := byBand[bandName]
	if !ok {
		sc = &BandScore{}
		byBand[bandName] = sc
	}
	return sc
}

// resolver builds a callsign -> coordinates lookup: the run's own grids
// first, then the persistent store, then decode. Unresolvable callsigns
// report ok=false and are skipped by the caller.
func (e *Engine) resolver(grids map[string]string) func(string) (float64, float64, bool) {
	return func(call string) (float64, float64, bool) {
		grid, ok := grids[call]
		if !ok && e.LookupGrid != nil {
			grid, ok = e.LookupGrid(call)
		}
		if !ok {
			return 0, 0, false
		}
		return geo.LatLonFromGrid(grid)
	}
}

// compareBand emits one band's comparison: common-station SNR deltas against
// the baseline, or the proportional reach fallback when no station was heard
// by every antenna, plus distance statistics over all resolvable stations.
func (e *Engine) compareBand(rep *reporter, res *Result, antennas []string, samples Samples, resolve func(string) (float64, float64, bool), bandName, direction string) {
	rep.blank()
	rep.line("%s:", bandName)

	common := commonCalls(samples, antennas, bandName)
	baseline := antennas[0]
	report := BandReport{Band: bandName, Direction: direction, CommonStations: len(common)}

	if len(common) > 0 {
		rep.line("  Common stations: %d", len(common))
		base := commonMean(samples[baseline][bandName], common)
		for _, ant := range antennas {
			avg := commonMean(samples[ant][bandName], common)
			delta := avg - base
			deltaStr := "(baseline)"
			if ant != baseline {
				deltaStr = fmt.Sprintf("%+.1f dB", delta)
			}
			rep.line("    %s: avg SNR %.1f dB %s", ant, avg, deltaStr)
			sc := res.score(ant, bandName)
			if direction == "rx" {
				sc.HasRXCommon = true
				sc.RXDelta = delta
				sc.RXCommon = len(common)
				sc.RXReach = len(samples[ant][bandName])
			} else {
				d := delta
				sc.TXDelta = &d
				sc.TXReach = len(samples[ant][bandName])
			}
			report.Stats = append(report.Stats, AntennaBandStat{
				Antenna: ant, AvgSNR: avg, DeltaDB: delta,
				Reach: len(samples[ant][bandName]),
			})
		}
	} else {
		// Reach fallback: no station heard by every antenna, so compare
		// distinct-callsign counts under the proportional threshold.
		report.FallbackReach = true
		rep.line("  No common stations; comparing reach")
		baseReach := len(samples[baseline][bandName])
		for _, ant := range antennas {
			reach := len(samples[ant][bandName])
			reachDelta := reach - baseReach
			deltaStr := "(baseline)"
			if ant != baseline {
				deltaStr = fmt.Sprintf("%+d", reachDelta)
			}
			rep.line("    %s: reach %d stns %s", ant, reach, deltaStr)
			sc := res.score(ant, bandName)
			if direction == "rx" {
				sc.RXReach = reach
				sc.RXReachDelta = reachDelta
			} else {
				sc.TXReach = reach
				sc.TXReachDelta = reachDelta
			}
			report.Stats = append(report.Stats, AntennaBandStat{Antenna: ant, Reach: reach})
		}
	}

	e.reportDistances(rep, res, &report, antennas, samples, resolve, bandName, direction)
	e.reportCountries(rep, antennas, samples, bandName)
	res.BandReports = append(res.BandReports, report)
}

func (e *Engine) reportDistances(rep *reporter, res *Result, report *BandReport, antennas []string, samples Samples, resolve func(string) (float64, float64, bool), bandName, direction string) {
	stats := make(map[string]DistanceStat)
	for _, ant := range antennas {
		if stat, ok := distanceStats(samples[ant][bandName], resolve, e.Lat, e.Lon); ok {
			stats[ant] = stat
		}
	}
	if len(stats) == 0 {
		return
	}
	label := "stations"
	if direction == "tx" {
		label = "receivers"
	}
	rep.line("  Distance (all %s with grids):", label)
	baseline := antennas[0]
	baseAvg := stats[baseline].AvgKm
	for _, ant := range antennas {
		stat, ok := stats[ant]
		if !ok {
			continue
		}
		deltaStr := "(baseline)"
		if ant != baseline {
			deltaStr = fmt.Sprintf("%+.0f km", stat.AvgKm-baseAvg)
		}
		rep.line("    %s: avg %.0f km, max %.0f km (%d stns) %s", ant, stat.AvgKm, stat.MaxKm, stat.Count, deltaStr)
		sc := res.score(ant, bandName)
		if direction == "rx" {
			sc.RXDist = stat
		} else {
			sc.TXDist = stat
		}
		for i := range report.Stats {
			if report.Stats[i].Antenna == ant {
				report.Stats[i].AvgDistKm = stat.AvgKm
				report.Stats[i].MaxDistKm = stat.MaxKm
				report.Stats[i].DistCount = stat.Count
			}
		}
	}
}

// reportCountries adds distinct-DXCC counts per antenna when a country
// resolver is wired.
func (e *Engine) reportCountries(rep *reporter, antennas []string, samples Samples, bandName string) {
	if e.Country == nil {
		return
	}
	parts := make([]string, 0, len(antennas))
	for _, ant := range antennas {
		countries := make(map[string]bool)
		for call := range samples[ant][bandName] {
			if name, ok := e.Country(call); ok {
				countries[name] = true
			}
		}
		if len(countries) > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", ant, len(countries)))
		}
	}
	if len(parts) > 0 {
		rep.line("  DXCC entities: %s", strings.Join(parts, ", "))
	}
}

// compareSectors buckets each resolvable station into one of the 8 compass
// octants by bearing from the operator and repeats the comparison per
// sector. All stations count here, not only common ones.
func (e *Engine) compareSectors(rep *reporter, res *Result, antennas []string, samples Samples, resolve func(string) (float64, float64, bool), bandName, direction string) {
	sectorOf := make(map[string]string)
	for _, ant := range antennas {
		for call := range samples[ant][bandName] {
			if _, seen := sectorOf[call]; seen {
				continue
			}
			lat, lon, ok := resolve(call)
			if !ok {
				continue
			}
			sectorOf[call] = geo.Sector(geo.Bearing(e.Lat, e.Lon, lat, lon))
		}
	}
	if len(sectorOf) == 0 {
		return
	}

	rep.blank()
	rep.line("%s:", bandName)
	baseline := antennas[0]

	for _, sector := range geo.Sectors {
		var sectorCalls []string
		for call, s := range sectorOf {
			if s == sector {
				sectorCalls = append(sectorCalls, call)
			}
		}
		if len(sectorCalls) == 0 {
			continue
		}
		sort.Strings(sectorCalls)

		type antSector struct {
			snrs      []int
			count     int
			distances []float64
		}
		stats := make(map[string]*antSector)
		for _, ant := range antennas {
			s := &antSector{}
			for _, call := range sectorCalls {
				samplesForCall, ok := samples[ant][bandName][call]
				if !ok {
					continue
				}
				s.snrs = append(s.snrs, samplesForCall...)
				s.count++
				if lat, lon, ok := resolve(call); ok {
					s.distances = append(s.distances, geo.DistanceKm(e.Lat, e.Lon, lat, lon))
				}
			}
			if len(s.snrs) > 0 {
				stats[ant] = s
			}
		}
		if len(stats) == 0 {
			continue
		}

		maxCount, maxHolders := 0, 0
		for _, s := range stats {
			if s.count > maxCount {
				maxCount, maxHolders = s.count, 1
			} else if s.count == maxCount {
				maxHolders++
			}
		}

		rep.line("  %s:", sector)
		baseAvg := 0.0
		if s, ok := stats[baseline]; ok {
			baseAvg = mean(s.snrs)
		}
		sectorReport := SectorReport{Band: bandName, Sector: sector, Direction: direction}
		for _, ant := range antennas {
			s, ok := stats[ant]
			if !ok {
				rep.line("      %s: 0 stns", ant)
				sectorReport.Stats = append(sectorReport.Stats, SectorStat{Antenna: ant})
				continue
			}
			avg := mean(s.snrs)
			delta := avg - baseAvg
			deltaStr := "(baseline)"
			if ant != baseline {
				deltaStr = fmt.Sprintf("%+.1f dB", delta)
			}
			best := s.count == maxCount && maxHolders == 1
			mark := ""
			if best {
				mark = " *"
			}
			var avgDist, maxDist float64
			for _, d := range s.distances {
				avgDist += d
				if d > maxDist {
					maxDist = d
				}
			}
			distStr := ""
			if len(s.distances) > 0 {
				avgDist /= float64(len(s.distances))
				distStr = fmt.Sprintf(", avg %.0f km, max %.0f km", avgDist, maxDist)
			}
			rep.line("      %s: %d stns, avg %.1f dB%s %s%s", ant, s.count, avg, distStr, deltaStr, mark)
			sectorReport.Stats = append(sectorReport.Stats, SectorStat{
				Antenna: ant, Stations: s.count, AvgSNR: avg, DeltaDB: delta,
				AvgDistKm: avgDist, MaxDistKm: maxDist, Best: best,
			})
		}
		res.SectorReports = append(res.SectorReports, sectorReport)
	}
}

func (e *Engine) runTx(rep *reporter, res *Result, in Input) {
	rep.blank()
	rep.rule("=")
	rep.line("TX ANALYSIS (PSKReporter - who heard you)")
	rep.rule("=")

	if in.TxUnavailable {
		rep.blank()
		rep.line("Session older than 24 hours - PSKReporter data unavailable")
		return
	}
	if in.Tx == nil || in.Tx.Total == 0 {
		rep.blank()
		rep.line("No TX spots found in PSKReporter for this session")
		rep.line("(You may not have transmitted, or spots haven't been uploaded yet)")
		return
	}

	rep.blank()
	rep.line("Found %d TX spots", in.Tx.Total)
	rep.blank()

	// Antennas with TX data, in the session's baseline-first order.
	var txAntennas []string
	for _, ant := range in.Antennas {
		if len(in.Tx.Samples[ant]) > 0 {
			txAntennas = append(txAntennas, ant)
		}
	}
	if len(txAntennas) == 0 {
		return
	}

	txResolve := e.resolver(in.Tx.Grids)

	rep.rule("-")
	rep.line("TX BY BAND")
	rep.rule("-")
	for _, bandName := range sortedBands(in.Tx.Samples.bands()) {
		e.compareBand(rep, res, txAntennas, in.Tx.Samples, txResolve, bandName, "tx")
	}

	rep.blank()
	rep.rule("-")
	rep.line("TX BY BEARING + BAND")
	rep.rule("-")
	for _, bandName := range sortedBands(in.Tx.Samples.bands()) {
		e.compareSectors(rep, res, txAntennas, in.Tx.Samples, txResolve, bandName, "tx")
	}
}

// summarize emits the per-band verdict lines, the win tally and the final
// recommendation. An antenna wins a band on RX when its common-station delta
// clears +1 dB over baseline (or its reach clears the proportional threshold
// when no common stations exist); same rule on TX. The antenna with the
// strictly highest win total is recommended; any tie, including all-zero, is
// inconclusive.
func (e *Engine) summarize(rep *reporter, res *Result, antennas []string) {
	rep.blank()
	rep.rule("=")
	rep.line("SUMMARY")
	rep.rule("=")

	bandSet := make(map[string]bool)
	for _, byBand := range res.Scores {
		for bandName := range byBand {
			bandSet[bandName] = true
		}
	}
	if len(bandSet) == 0 {
		rep.blank()
		rep.line("Insufficient data for a comparison")
		res.Inconclusive = true
		return
	}

	baseline := antennas[0]
	others := antennas[1:]

	rep.blank()
	rep.line("Baseline antenna: %s", baseline)
	rep.blank()

	tally := make(map[string]*Wins)
	for _, ant := range antennas {
		tally[ant] = &Wins{}
	}

	for _, bandName := range sortedBands(bandSet) {
		rep.line("%s:", bandName)
		for _, ant := range others {
			sc := res.score(ant, bandName)
			baseSc := res.score(baseline, bandName)
			var parts []string

			if sc.HasRXCommon {
				switch {
				case sc.RXDelta > snrVerdictDB:
					parts = append(parts, fmt.Sprintf("RX: %s +%.1fdB better", ant, sc.RXDelta))
					tally[ant].RX++
				case sc.RXDelta < -snrVerdictDB:
					parts = append(parts, fmt.Sprintf("RX: %s %.1fdB better", baseline, -sc.RXDelta))
					tally[baseline].RX++
				default:
					parts = append(parts, "RX: similar")
				}
			} else if sc.RXReach > 0 || baseSc.RXReach > 0 {
				switch {
				case sc.RXReachDelta > 0 && reachSignificant(sc.RXReach, baseSc.RXReach):
					parts = append(parts, fmt.Sprintf("RX reach: %s +%d stns (%d vs %d)", ant, sc.RXReachDelta, sc.RXReach, baseSc.RXReach))
					tally[ant].RX++
				case sc.RXReachDelta < 0 && reachSignificant(sc.RXReach, baseSc.RXReach):
					parts = append(parts, fmt.Sprintf("RX reach: %s +%d stns (%d vs %d)", baseline, -sc.RXReachDelta, baseSc.RXReach, sc.RXReach))
					tally[baseline].RX++
				default:
					parts = append(parts, fmt.Sprintf("RX reach: similar (%d vs %d)", sc.RXReach, baseSc.RXReach))
				}
			}

			if sc.TXDelta != nil {
				switch {
				case *sc.TXDelta > snrVerdictDB:
					parts = append(parts, fmt.Sprintf("TX: %s +%.1fdB better", ant, *sc.TXDelta))
					tally[ant].TX++
				case *sc.TXDelta < -snrVerdictDB:
					parts = append(parts, fmt.Sprintf("TX: %s %.1fdB better", baseline, -*sc.TXDelta))
					tally[baseline].TX++
				default:
					parts = append(parts, "TX: similar")
				}
			} else if sc.TXReach > 0 || baseSc.TXReach > 0 {
				switch {
				case sc.TXReachDelta > 0 && reachSignificant(sc.TXReach, baseSc.TXReach):
					parts = append(parts, fmt.Sprintf("TX reach: %s +%d stns (%d vs %d)", ant, sc.TXReachDelta, sc.TXReach, baseSc.TXReach))
					tally[ant].TX++
				case sc.TXReachDelta < 0 && reachSignificant(sc.TXReach, baseSc.TXReach):
					parts = append(parts, fmt.Sprintf("TX reach: %s +%d stns (%d vs %d)", baseline, -sc.TXReachDelta, baseSc.TXReach, sc.TXReach))
					tally[baseline].TX++
				default:
					parts = append(parts, fmt.Sprintf("TX reach: similar (%d vs %d)", sc.TXReach, baseSc.TXReach))
				}
			}

			if len(parts) > 0 {
				rep.line("  %s vs %s: %s", ant, baseline, strings.Join(parts, " | "))
			} else {
				rep.line("  %s vs %s: insufficient data", ant, baseline)
			}
		}
	}

	rep.blank()
	rep.rule("-")
	rep.line("RECOMMENDATION:")

	for _, ant := range antennas {
		w := tally[ant]
		res.WinTally[ant] = *w
		rep.line("  %s: %d RX wins, %d TX wins", ant, w.RX, w.TX)
	}

	best, bestTotal, holders := "", 0, 0
	for _, ant := range antennas {
		total := tally[ant].RX + tally[ant].TX
		if total > bestTotal {
			best, bestTotal, holders = ant, total, 1
		} else if total == bestTotal {
			holders++
		}
	}
	rep.blank()
	if bestTotal > 0 && holders == 1 {
		res.Recommended = best
		rep.line("  --> %s appears to be the better overall performer", best)
	} else {
		res.Inconclusive = true
		rep.line("  --> Results too close to call; consider more testing")
	}
}

// buildMap assembles the per-station bearing/distance/SNR dataset for the
// azimuthal map.
func (e *Engine) buildMap(in Input) MapData {
	md := MapData{
		QTH:        MapQTH{Grid: e.Grid, Lat: e.Lat, Lon: e.Lon},
		Antennas:   in.Antennas,
		RxStations: []MapStation{},
		TxStations: []MapStation{},
	}
	md.RxStations = e.mapStations(in.Rx.Samples, in.Rx.Grids, in.Antennas)
	if in.Tx != nil {
		md.TxStations = e.mapStations(in.Tx.Samples, in.Tx.Grids, in.Antennas)
	}
	return md
}

func (e *Engine) mapStations(samples Samples, grids map[string]string, antennas []string) []MapStation {
	resolve := e.resolver(grids)
	out := []MapStation{}
	for _, ant := range antennas {
		for _, bandName := range sortedBands(samples.bands()) {
			byCall := samples[ant][bandName]
			calls := make([]string, 0, len(byCall))
			for call := range byCall {
				calls = append(calls, call)
			}
			sort.Strings(calls)
			for _, call := range calls {
				lat, lon, ok := resolve(call)
				if !ok {
					continue
				}
				grid := grids[call]
				if grid == "" && e.LookupGrid != nil {
					grid, _ = e.LookupGrid(call)
				}
				bearing := geo.Bearing(e.Lat, e.Lon, lat, lon)
				dist := geo.DistanceKm(e.Lat, e.Lon, lat, lon)
				out = append(out, MapStation{
					Call:       call,
					Grid:       grid,
					Antenna:    ant,
					Band:       bandName,
					Bearing:    math.Round(bearing*10) / 10,
					DistanceKm: int(math.Round(dist)),
					SNR:        math.Round(mean(byCall[call])*10) / 10,
				})
			}
		}
	}
	return out
}
