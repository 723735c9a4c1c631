package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store owns the on-disk session event log. Every mutation goes through the
// store's append lock so "read full log, validate transition, append" is
// atomic with respect to other writers in the same process (the CLI and the
// telnet control surface share one Store). Read-only queries replay the last
// durably written log without taking the write path.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the given JSON log file. The file is
// created on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Events loads the full event log. A missing file is an empty log.
func (s *Store) Events() ([]Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read log: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("session: parse log: %w", err)
	}
	return events, nil
}

func (s *Store) writeLocked(events []Event) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("session: ensure log directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode log: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: write log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: publish log: %w", err)
	}
	return nil
}

// append validates the event against the replayed status and appends it. The
// validate callback sees the status derived from the current log and returns
// an error to reject the transition, leaving the log unchanged.
func (s *Store) append(ev Event, validate func(Status) error) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.Events()
	if err != nil {
		return Event{}, err
	}
	if validate != nil {
		if err := validate(ReduceStatus(events, ev.Time)); err != nil {
			return Event{}, err
		}
	}
	events = append(events, ev)
	if err := s.writeLocked(events); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Start appends a start event. Rejected while a session is active or paused.
func (s *Store) Start(name string, solar map[string]string, now time.Time) (Event, error) {
	ev := Event{Kind: EventStart, Time: now.UTC(), Name: name, Solar: solar}
	return s.append(ev, func(st Status) error {
		if st.Active {
			return ErrSessionActive
		}
		return nil
	})
}

// Stop appends a stop event. Rejected when no session is active.
func (s *Store) Stop(now time.Time) (Event, error) {
	return s.append(Event{Kind: EventStop, Time: now.UTC()}, func(st Status) error {
		if !st.Active {
			return ErrNoSession
		}
		return nil
	})
}

// Pause appends a pause event. Rejected when inactive or already paused.
func (s *Store) Pause(now time.Time) (Event, error) {
	return s.append(Event{Kind: EventPause, Time: now.UTC()}, func(st Status) error {
		if !st.Active {
			return ErrNoSession
		}
		if st.Paused {
			return ErrAlreadyPaused
		}
		return nil
	})
}

// Resume appends a resume event. Rejected when inactive or not paused.
func (s *Store) Resume(now time.Time) (Event, error) {
	return s.append(Event{Kind: EventResume, Time: now.UTC()}, func(st Status) error {
		if !st.Active {
			return ErrNoSession
		}
		if !st.Paused {
			return ErrNotPaused
		}
		return nil
	})
}

// Use appends an antenna switch carrying a snapshot of the antenna's current
// description. Accepted while running or paused; rejected when inactive.
func (s *Store) Use(label, bandName, description string, now time.Time) (Event, error) {
	ev := Event{
		Kind:        EventUse,
		Time:        now.UTC(),
		Antenna:     label,
		Band:        bandName,
		Description: description,
	}
	return s.append(ev, func(st Status) error {
		if !st.Active {
			return ErrNoSession
		}
		return nil
	})
}

// Note appends a free-text note. Notes are accepted in any state.
func (s *Store) Note(text string, now time.Time) (Event, error) {
	return s.append(Event{Kind: EventNote, Time: now.UTC(), Text: text}, nil)
}

// Clear truncates the log to empty. There are no partial edits.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked([]Event{})
}

// Status replays the log into the derived status.
func (s *Store) Status(now time.Time) (Status, error) {
	events, err := s.Events()
	if err != nil {
		return Status{}, err
	}
	return ReduceStatus(events, now), nil
}

// Timeline replays the log into the derived interval set.
func (s *Store) Timeline(now time.Time) (Timeline, error) {
	events, err := s.Events()
	if err != nil {
		return Timeline{}, err
	}
	return BuildTimeline(events, now), nil
}
