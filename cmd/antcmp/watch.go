package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"antcmp/band"
	"antcmp/control"
	"antcmp/decode"
	"antcmp/live"
	"antcmp/session"
	"antcmp/solarweather"
	"antcmp/ui"
)

const statusRefreshInterval = 2 * time.Second

// cmdWatch runs the live session view: session status, new decodes as they
// land in ALL.TXT, and (when enabled) live reception reports from the MQTT
// filter feed. The optional telnet control surface runs alongside so the
// antenna can be switched from another machine.
func (a *app) cmdWatch() error {
	if !interactive() {
		return fmt.Errorf("watch: stdout is not a terminal")
	}

	watch := ui.NewWatch()

	// The TUI owns the terminal; keep log lines off the console while it runs.
	a.fanout.SetConsoleSink(nil, false)
	defer a.fanout.SetConsoleSink(os.Stderr, true)

	stop := make(chan struct{})
	defer close(stop)

	if a.cfg.Control.Enabled {
		ctl := control.NewServer(a.cfg.Control.BindAddress, a.cfg.Control.Port, a.store, a.registry)
		if err := ctl.Start(); err != nil {
			return err
		}
		defer ctl.Stop()
	}

	if a.cfg.Live.Enabled && a.cfg.Station.Callsign != "" {
		feed := live.NewFeed(a.cfg.Live.Broker, a.cfg.Live.Port, a.cfg.Station.Callsign, a.cfg.Station.Mode)
		if err := feed.Connect(); err != nil {
			log.Printf("live feed unavailable: %v", err)
		} else {
			defer feed.Stop()
			go func() {
				for {
					select {
					case <-stop:
						return
					case spot := <-feed.Spots():
						watch.AddSpot(spot)
					}
				}
			}()
		}
	}

	go a.refreshStatus(watch, stop)
	if a.cfg.Paths.DecodeLog != "" {
		go a.tailDecodes(watch, stop)
		go a.refreshIntervals(watch, stop)
	}

	return watch.Run()
}

// refreshStatus re-derives the session status on a short interval so elapsed
// times tick and control-surface mutations show up without a keypress.
func (a *app) refreshStatus(watch *ui.Watch, stop <-chan struct{}) {
	ticker := time.NewTicker(statusRefreshInterval)
	defer ticker.Stop()
	for {
		now := time.Now().UTC()
		st, err := a.store.Status(now)
		if err != nil {
			log.Printf("watch: status: %v", err)
		} else {
			summary := ""
			if len(st.Solar) > 0 {
				summary = solarweather.Interpret(st.Solar).Summary
			}
			watch.SetStatus(st, summary, now)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// refreshIntervals periodically re-reads the full decode log and summarizes
// per-antenna per-band decode counts over the session's intervals. Heavier
// than the tail, so it runs on a longer interval.
func (a *app) refreshIntervals(watch *ui.Watch, stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		now := time.Now().UTC()
		tl, err := a.store.Timeline(now)
		if err != nil {
			log.Printf("watch: timeline: %v", err)
		} else if len(tl.Intervals) > 0 {
			counts, err := a.countDecodes(tl)
			if err != nil {
				log.Printf("watch: count decodes: %v", err)
			} else {
				watch.SetIntervals(tl, counts)
			}
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// countDecodes tallies matched decodes per antenna per band for the interval
// summary panel.
func (a *app) countDecodes(tl session.Timeline) (map[string]map[string]int, error) {
	file, err := os.Open(a.cfg.Paths.DecodeLog)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parser := decode.NewParser(a.cfg.Station.Mode, band.FromFrequency)
	counts := make(map[string]map[string]int)
	err = parser.Scan(file, func(rec decode.Record) {
		antennaLabel := tl.Locate(rec.Time)
		if antennaLabel == "" {
			return
		}
		byBand, ok := counts[antennaLabel]
		if !ok {
			byBand = make(map[string]int)
			counts[antennaLabel] = byBand
		}
		byBand[rec.Band]++
	})
	return counts, err
}

// tailDecodes follows the decode log from its current end, attributing new
// records to whichever antenna the session log says is active.
func (a *app) tailDecodes(watch *ui.Watch, stop <-chan struct{}) {
	file, err := os.Open(a.cfg.Paths.DecodeLog)
	if err != nil {
		log.Printf("watch: open decode log: %v", err)
		return
	}
	defer file.Close()
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		log.Printf("watch: seek decode log: %v", err)
		return
	}

	parser := decode.NewParser(a.cfg.Station.Mode, band.FromFrequency)
	follower := &lineFollower{reader: bufio.NewReader(file)}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		follower.drain(func(line string) {
			rec, ok := parser.ParseLine(line)
			if !ok {
				return
			}
			now := time.Now().UTC()
			st, err := a.store.Status(now)
			antennaLabel := ""
			if err == nil && st.Active && !st.Paused {
				antennaLabel = st.CurrentAntenna
			}
			watch.AddDecode(antennaLabel, rec)
		})
	}
}

// lineFollower yields complete lines from a file that is still being written.
// A partial trailing line at EOF is held back and prepended once the writer
// finishes it, so no decode is split across two reads.
type lineFollower struct {
	reader  *bufio.Reader
	pending string
}

func (f *lineFollower) drain(fn func(line string)) {
	for {
		chunk, err := f.reader.ReadString('\n')
		if err != nil {
			f.pending += chunk
			return
		}
		fn(f.pending + chunk)
		f.pending = ""
	}
}
