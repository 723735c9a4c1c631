package session

import "time"

// Interval is a derived, non-overlapping span of time during which one
// antenna (and optionally one band) was in use. Intervals are the canonical
// input to the correlation engine.
type Interval struct {
	Antenna     string    `json:"antenna"`
	Description string    `json:"description"`
	Band        string    `json:"band,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Timeline is the full interval derivation for one session.
type Timeline struct {
	SessionStart time.Time
	SessionEnd   time.Time // zero while the session is still running
	Intervals    []Interval
}

// BuildTimeline replays the event log into the interval set.
//
// Rules: a use event closes any open interval at its timestamp and opens a
// new one; pause closes the open interval; stop closes and finalizes; resume
// opens nothing (the next use does). A use issued while paused still opens an
// interval at its own timestamp — that interval spans the remainder of the
// paused period and is kept, matching the recorded log rather than the pause
// flag. If the session is still running, the final open interval is closed at
// now instead of being dropped.
func BuildTimeline(events []Event, now time.Time) Timeline {
	var tl Timeline
	var (
		current     string
		currentDesc string
		currentBand string
		currentFrom time.Time
	)
	closeCurrent := func(end time.Time) {
		if current != "" && !currentFrom.IsZero() {
			tl.Intervals = append(tl.Intervals, Interval{
				Antenna:     current,
				Description: currentDesc,
				Band:        currentBand,
				Start:       currentFrom,
				End:         end,
			})
		}
		current = ""
		currentFrom = time.Time{}
	}
	for _, ev := range events {
		switch ev.Kind {
		case EventStart:
			tl.SessionStart = ev.Time
			tl.SessionEnd = time.Time{}
			current = ""
			currentFrom = time.Time{}
		case EventStop:
			closeCurrent(ev.Time)
			tl.SessionEnd = ev.Time
		case EventPause:
			closeCurrent(ev.Time)
		case EventResume:
			// Opens nothing; the next use does.
		case EventUse:
			if tl.SessionStart.IsZero() {
				// Legacy logs without an explicit start event.
				tl.SessionStart = ev.Time
			}
			closeCurrent(ev.Time)
			current = ev.Antenna
			currentDesc = ev.Description
			currentBand = ev.Band
			currentFrom = ev.Time
		}
	}
	if current != "" && !currentFrom.IsZero() && tl.SessionEnd.IsZero() {
		closeCurrent(now)
	}
	return tl
}

// Running reports whether the session had not been stopped when the timeline
// was built.
func (tl Timeline) Running() bool {
	return !tl.SessionStart.IsZero() && tl.SessionEnd.IsZero()
}

// AntennaOrder returns the distinct antenna labels in order of earliest
// interval start. The first entry is the baseline antenna for comparisons.
func (tl Timeline) AntennaOrder() []string {
	seen := make(map[string]bool)
	var order []string
	for _, iv := range tl.Intervals {
		if !seen[iv.Antenna] {
			seen[iv.Antenna] = true
			order = append(order, iv.Antenna)
		}
	}
	return order
}

// Locate returns the antenna of the first interval containing t, using the
// half-open rule start <= t < end, or "" when t falls outside every interval.
func (tl Timeline) Locate(t time.Time) string {
	for _, iv := range tl.Intervals {
		if !t.Before(iv.Start) && t.Before(iv.End) {
			return iv.Antenna
		}
	}
	return ""
}
