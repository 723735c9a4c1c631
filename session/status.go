package session

import "time"

// Status is the session state derived by replaying the event log. It is
// recomputed on every query and never stored, so it cannot drift from the log.
type Status struct {
	Active             bool
	Paused             bool
	Name               string
	StartTime          time.Time // zero when no session has started
	Solar              map[string]string
	Notes              []string
	CurrentAntenna     string
	CurrentAntennaDesc string
	CurrentSince       time.Time
	Elapsed            time.Duration
	AntennaElapsed     time.Duration
}

// ReduceStatus folds the event sequence into a Status. Elapsed durations are
// measured against now.
func ReduceStatus(events []Event, now time.Time) Status {
	var st Status
	for _, ev := range events {
		switch ev.Kind {
		case EventStart:
			st.Active = true
			st.Paused = false
			st.StartTime = ev.Time
			st.Name = ev.Name
			st.Solar = ev.Solar
			st.CurrentAntenna = ""
			st.CurrentAntennaDesc = ""
			st.CurrentSince = time.Time{}
		case EventStop:
			st.Active = false
			st.CurrentAntenna = ""
			st.CurrentAntennaDesc = ""
		case EventPause:
			st.Paused = true
		case EventResume:
			st.Paused = false
		case EventUse:
			st.CurrentAntenna = ev.Antenna
			st.CurrentAntennaDesc = ev.Description
			st.CurrentSince = ev.Time
		case EventNote:
			st.Notes = append(st.Notes, ev.Text)
		}
	}
	if !st.StartTime.IsZero() && st.Active {
		st.Elapsed = now.Sub(st.StartTime)
	}
	if !st.CurrentSince.IsZero() && st.CurrentAntenna != "" {
		st.AntennaElapsed = now.Sub(st.CurrentSince)
	}
	return st
}
