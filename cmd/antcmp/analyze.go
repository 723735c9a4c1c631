package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"antcmp/analysis"
	"antcmp/artifact"
	"antcmp/band"
	"antcmp/cty"
	"antcmp/decode"
	"antcmp/geo"
	"antcmp/gridstore"
	"antcmp/pskreporter"
	"antcmp/session"
)

// spotLookback is how far back the reception-report service answers queries.
// Sessions older than this can only be TX-analyzed from a cache.
const spotLookback = 24 * time.Hour

// cmdAnalyze correlates the decode log and reception reports against the
// session intervals and publishes the comparison artifact.
func (a *app) cmdAnalyze(ctx context.Context, now time.Time) error {
	tl, err := a.store.Timeline(now)
	if err != nil {
		return err
	}
	if len(tl.Intervals) == 0 {
		return fmt.Errorf("analyze: no antenna intervals recorded; use antcmp use during a session")
	}
	antennas := tl.AntennaOrder()
	if len(antennas) < 2 {
		fmt.Printf("Only one antenna (%s) was used; the report will have nothing to compare.\n", antennas[0])
	}

	if a.cfg.Station.Callsign == "" || a.cfg.Station.Grid == "" {
		return fmt.Errorf("analyze: station callsign and grid must be configured")
	}
	lat, lon, ok := geo.LatLonFromGrid(a.cfg.Station.Grid)
	if !ok {
		return fmt.Errorf("analyze: invalid station grid %q", a.cfg.Station.Grid)
	}

	rx, rxRecords, err := a.collectDecodes(tl)
	if err != nil {
		return err
	}

	grids, err := a.openGridStore()
	if err != nil {
		log.Printf("grid store unavailable: %v", err)
	} else {
		defer grids.Close()
		a.rememberGrids(grids, rx, now)
	}

	tx, txSpots, cachedSpots, txUnavailable := a.collectSpots(ctx, tl, now)

	engine := &analysis.Engine{Grid: a.cfg.Station.Grid, Lat: lat, Lon: lon}
	if grids != nil {
		engine.LookupGrid = grids.Grid
	}
	if a.cfg.Paths.CTYPlist != "" {
		if db, err := cty.Load(a.cfg.Paths.CTYPlist); err != nil {
			log.Printf("country database unavailable: %v", err)
		} else {
			engine.Country = db.Country
		}
	}

	result := engine.Run(analysis.Input{
		Timeline:      tl,
		Antennas:      antennas,
		Rx:            rx,
		Tx:            tx,
		TxUnavailable: txUnavailable,
	})
	for _, line := range result.Lines {
		fmt.Println(line)
	}

	st, err := a.store.Status(now)
	if err != nil {
		return err
	}
	run := artifact.Run{
		Meta: artifact.Meta{
			SessionStart: tl.SessionStart,
			SessionEnd:   tl.SessionEnd,
			Grid:         a.cfg.Station.Grid,
			Lat:          lat,
			Lon:          lon,
			Solar:        st.Solar,
			Intervals:    tl.Intervals,
		},
		ReportLines: result.Lines,
		RxRaw:       rx.RawLines,
		TxRaw:       tx.RawSpots,
		Map:         result.Map,
		CachedSpots: cachedSpots,
		RxRecords:   rxRecords,
		TxSpots:     txSpots,
	}
	path, err := a.artifacts.Publish(run)
	if err != nil {
		return err
	}
	fmt.Printf("\nComparison saved to %s\n", path)
	return nil
}

// collectDecodes parses the decode log, folds likely busted callsigns into
// their consensus neighbors, and joins the records to the session intervals.
func (a *app) collectDecodes(tl session.Timeline) (*analysis.RxData, []artifact.MatchedRecord, error) {
	if a.cfg.Paths.DecodeLog == "" {
		return nil, nil, fmt.Errorf("analyze: paths.decode_log is not configured")
	}
	file, err := os.Open(a.cfg.Paths.DecodeLog)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze: open decode log: %w", err)
	}
	defer file.Close()

	parser := decode.NewParser(a.cfg.Station.Mode, band.FromFrequency)
	var records []decode.Record
	var parsed int
	err = parser.Scan(file, func(rec decode.Record) {
		parsed++
		if tl.Locate(rec.Time) == "" {
			return
		}
		records = append(records, rec)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("analyze: read decode log: %w", err)
	}

	// Fold single-occurrence callsigns into heavily-heard edit-distance-1
	// neighbors on the same band before aggregation.
	counts := make(map[string]map[string]int)
	for _, rec := range records {
		byCall, ok := counts[rec.Band]
		if !ok {
			byCall = make(map[string]int)
			counts[rec.Band] = byCall
		}
		byCall[rec.Call]++
	}
	foldTo := make(map[string]string)
	for _, fold := range decode.FoldBustedCalls(counts) {
		foldTo[fold.Band+"|"+fold.From] = fold.To
	}
	if len(foldTo) > 0 {
		log.Printf("folded %d busted callsign(s)", len(foldTo))
	}

	rx := analysis.NewRxData()
	var matched []artifact.MatchedRecord
	for _, rec := range records {
		if to, ok := foldTo[rec.Band+"|"+rec.Call]; ok {
			rec.Call = to
			rec.Grid = ""
		}
		rx.Add(rec, tl)
		matched = append(matched, artifact.MatchedRecord{Antenna: tl.Locate(rec.Time), Record: rec})
	}
	fmt.Printf("Parsed %s decode(s), %s matched to intervals\n",
		humanize.Comma(int64(parsed)), humanize.Comma(int64(len(matched))))
	return rx, matched, nil
}

func (a *app) openGridStore() (*gridstore.Store, error) {
	return gridstore.Open(a.cfg.Paths.GridDB, gridstore.Options{})
}

// rememberGrids feeds this run's observed callsign grids into the persistent
// store so later sessions can resolve stations that omit their locator.
func (a *app) rememberGrids(grids *gridstore.Store, rx *analysis.RxData, now time.Time) {
	recs := make([]gridstore.Record, 0, len(rx.Grids))
	for call, grid := range rx.Grids {
		recs = append(recs, gridstore.Record{Call: call, Grid: grid, Observations: 1, UpdatedAt: now})
	}
	if len(recs) == 0 {
		return
	}
	if err := grids.UpsertBatch(recs); err != nil {
		log.Printf("grid store update failed: %v", err)
	}
}

// collectSpots returns the TX aggregate. The cache is consulted first; the
// network is only queried while the session start is inside the service's
// lookback window. Outside the window with no cache, TX analysis is reported
// unavailable rather than silently empty.
func (a *app) collectSpots(ctx context.Context, tl session.Timeline, now time.Time) (*analysis.TxData, []artifact.MatchedSpot, []pskreporter.Spot, bool) {
	tx := analysis.NewTxData()
	cache := pskreporter.NewCache(a.cfg.SpotCacheDir())
	key := pskreporter.RunKey(a.cfg.Station.Callsign, tl.SessionStart)

	spots, hit, err := cache.Load(key)
	if err != nil {
		log.Printf("spot cache read failed: %v", err)
	}
	if !hit {
		if now.Sub(tl.SessionStart) > spotLookback {
			return tx, nil, nil, true
		}
		client := pskreporter.NewClient(a.cfg.Station.Mode, band.FromFrequency)
		if a.cfg.PSKReporter.BaseURL != "" {
			client.BaseURL = a.cfg.PSKReporter.BaseURL
		}
		end := tl.SessionEnd
		if end.IsZero() {
			end = now
		}
		spots = client.FetchSpots(ctx, a.cfg.Station.Callsign, tl.SessionStart, end)
		if err := cache.Save(key, spots); err != nil {
			log.Printf("spot cache write failed: %v", err)
		}
	}

	var matched []artifact.MatchedSpot
	for _, spot := range spots {
		tx.Add(spot, tl)
		if antenna := tl.Locate(spot.Time); antenna != "" {
			matched = append(matched, artifact.MatchedSpot{Antenna: antenna, Spot: spot})
		}
	}
	return tx, matched, spots, false
}
