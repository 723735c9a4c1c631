package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "antenna_log.json"))
}

func at(minute int) time.Time {
	return time.Date(2023, 10, 15, 14, minute, 0, 0, time.UTC)
}

func TestStartRejectedWhileActive(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Start("", nil, at(0)); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := s.Start("", nil, at(1)); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Start error = %v, want ErrSessionActive", err)
	}
	if _, err := s.Pause(at(2)); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if _, err := s.Start("", nil, at(3)); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("Start while paused error = %v, want ErrSessionActive", err)
	}
}

func TestTransitionsRejectedWhileInactive(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Stop(at(0)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Stop error = %v, want ErrNoSession", err)
	}
	if _, err := s.Pause(at(0)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Pause error = %v, want ErrNoSession", err)
	}
	if _, err := s.Resume(at(0)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Resume error = %v, want ErrNoSession", err)
	}
	if _, err := s.Use("A", "", "dipole", at(0)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Use error = %v, want ErrNoSession", err)
	}
	// The log must be unchanged after rejected transitions.
	events, err := s.Events()
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("log has %d events after rejections, want 0", len(events))
	}
}

func TestPauseResumeValidation(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	if _, err := s.Resume(at(1)); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume while running error = %v, want ErrNotPaused", err)
	}
	if _, err := s.Pause(at(2)); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if _, err := s.Pause(at(3)); !errors.Is(err, ErrAlreadyPaused) {
		t.Fatalf("double Pause error = %v, want ErrAlreadyPaused", err)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustPause(t, s, at(2))
	mustResume(t, s, at(3))
	mustUse(t, s, "B", at(4))
	events, err := s.Events()
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	now := at(10)
	st1 := ReduceStatus(events, now)
	st2 := ReduceStatus(events, now)
	if st1.CurrentAntenna != st2.CurrentAntenna || st1.Active != st2.Active || st1.Paused != st2.Paused {
		t.Fatalf("two replays differ: %+v vs %+v", st1, st2)
	}
	tl1 := BuildTimeline(events, now)
	tl2 := BuildTimeline(events, now)
	if len(tl1.Intervals) != len(tl2.Intervals) {
		t.Fatalf("two timeline replays differ: %d vs %d intervals", len(tl1.Intervals), len(tl2.Intervals))
	}
	for i := range tl1.Intervals {
		if tl1.Intervals[i] != tl2.Intervals[i] {
			t.Fatalf("interval %d differs between replays", i)
		}
	}
}

func TestTimelineIntervalsOrderedAndNonOverlapping(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustUse(t, s, "B", at(5))
	mustPause(t, s, at(8))
	mustResume(t, s, at(9))
	mustUse(t, s, "A", at(10))
	mustStop(t, s, at(15))
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	if len(tl.Intervals) != 3 {
		t.Fatalf("got %d intervals, want 3", len(tl.Intervals))
	}
	for i := 1; i < len(tl.Intervals); i++ {
		prev, cur := tl.Intervals[i-1], tl.Intervals[i]
		if cur.Start.Before(prev.End) {
			t.Fatalf("interval %d starts %v before previous end %v", i, cur.Start, prev.End)
		}
	}
	if !tl.SessionEnd.Equal(at(15)) {
		t.Fatalf("SessionEnd = %v, want %v", tl.SessionEnd, at(15))
	}
}

func TestTimelineRunningSessionClosesAtNow(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	events, _ := s.Events()
	now := at(30)
	tl := BuildTimeline(events, now)
	if len(tl.Intervals) != 1 {
		t.Fatalf("got %d intervals, want 1", len(tl.Intervals))
	}
	if !tl.Intervals[0].End.Equal(now) {
		t.Fatalf("open interval end = %v, want now %v", tl.Intervals[0].End, now)
	}
	if !tl.Running() {
		t.Fatalf("Running() = false for a session without stop")
	}
}

// A use issued while paused opens an interval at the use timestamp. This is
// the documented resolution of the pause/use interaction: the recorded log
// wins, so the interval spans from the paused-time switch through to the
// stop, including the remainder of the paused period.
func TestUseWhilePausedOpensIntervalAtUseTime(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustPause(t, s, at(5))
	mustUse(t, s, "B", at(6)) // accepted while paused
	mustResume(t, s, at(8))
	mustStop(t, s, at(12))
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	if len(tl.Intervals) != 2 {
		t.Fatalf("got %d intervals, want 2: %+v", len(tl.Intervals), tl.Intervals)
	}
	a, b := tl.Intervals[0], tl.Intervals[1]
	if a.Antenna != "A" || !a.Start.Equal(at(1)) || !a.End.Equal(at(5)) {
		t.Fatalf("interval A = %+v, want [14:01, 14:05]", a)
	}
	if b.Antenna != "B" || !b.Start.Equal(at(6)) || !b.End.Equal(at(12)) {
		t.Fatalf("interval B = %+v, want [14:06, 14:12]", b)
	}
}

// Stopping while still paused must close the interval a paused-time use
// opened; the pause state never suppresses the stop-time close.
func TestStopWhilePausedClosesOpenInterval(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustPause(t, s, at(5))
	mustUse(t, s, "B", at(6)) // accepted while paused
	mustStop(t, s, at(12))    // never resumed
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	if len(tl.Intervals) != 2 {
		t.Fatalf("got %d intervals, want 2: %+v", len(tl.Intervals), tl.Intervals)
	}
	a, b := tl.Intervals[0], tl.Intervals[1]
	if a.Antenna != "A" || !a.Start.Equal(at(1)) || !a.End.Equal(at(5)) {
		t.Fatalf("interval A = %+v, want [14:01, 14:05]", a)
	}
	if b.Antenna != "B" || !b.Start.Equal(at(6)) || !b.End.Equal(at(12)) {
		t.Fatalf("interval B = %+v, want [14:06, 14:12]", b)
	}
}

// A still-running session that is paused with a paused-time use pending
// closes that interval at now, same as the unpaused replay.
func TestRunningPausedSessionClosesPausedUseAtNow(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustPause(t, s, at(5))
	mustUse(t, s, "B", at(6))
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	if len(tl.Intervals) != 2 {
		t.Fatalf("got %d intervals, want 2: %+v", len(tl.Intervals), tl.Intervals)
	}
	b := tl.Intervals[1]
	if b.Antenna != "B" || !b.Start.Equal(at(6)) || !b.End.Equal(at(20)) {
		t.Fatalf("interval B = %+v, want [14:06, 14:20]", b)
	}
}

func TestAntennaOrderBaselineIsEarliestInterval(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "B", at(1))
	mustUse(t, s, "A", at(5))
	mustUse(t, s, "B", at(9))
	mustStop(t, s, at(12))
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	order := tl.AntennaOrder()
	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Fatalf("AntennaOrder() = %v, want [B A]", order)
	}
}

func TestLocateUsesHalfOpenRule(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	mustUse(t, s, "A", at(1))
	mustUse(t, s, "B", at(5))
	mustStop(t, s, at(9))
	events, _ := s.Events()
	tl := BuildTimeline(events, at(20))
	if got := tl.Locate(at(5)); got != "B" {
		t.Fatalf("Locate at boundary = %q, want B (half-open intervals)", got)
	}
	if got := tl.Locate(at(9)); got != "" {
		t.Fatalf("Locate at session end = %q, want empty", got)
	}
	if got := tl.Locate(at(0)); got != "" {
		t.Fatalf("Locate before first use = %q, want empty", got)
	}
}

func TestClearTruncatesLog(t *testing.T) {
	s := newTestStore(t)
	mustStart(t, s, at(0))
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	events, err := s.Events()
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("log has %d events after Clear, want 0", len(events))
	}
	// A new session may start immediately after clear.
	if _, err := s.Start("", nil, at(1)); err != nil {
		t.Fatalf("Start after Clear returned error: %v", err)
	}
}

func TestStatusSnapshotsSolarAndNotes(t *testing.T) {
	s := newTestStore(t)
	solar := map[string]string{"solarflux": "142", "kindex": "2"}
	if _, err := s.Start("coax shootout", solar, at(0)); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := s.Note("switched feedline", at(2)); err != nil {
		t.Fatalf("Note returned error: %v", err)
	}
	st, err := s.Status(at(3))
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if st.Name != "coax shootout" {
		t.Fatalf("Name = %q, want coax shootout", st.Name)
	}
	if st.Solar["solarflux"] != "142" {
		t.Fatalf("Solar snapshot missing: %+v", st.Solar)
	}
	if len(st.Notes) != 1 || st.Notes[0] != "switched feedline" {
		t.Fatalf("Notes = %v", st.Notes)
	}
	if st.Elapsed != 3*time.Minute {
		t.Fatalf("Elapsed = %v, want 3m", st.Elapsed)
	}
}

func mustStart(t *testing.T, s *Store, now time.Time) {
	t.Helper()
	if _, err := s.Start("", nil, now); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
}

func mustStop(t *testing.T, s *Store, now time.Time) {
	t.Helper()
	if _, err := s.Stop(now); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}

func mustPause(t *testing.T, s *Store, now time.Time) {
	t.Helper()
	if _, err := s.Pause(now); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
}

func mustResume(t *testing.T, s *Store, now time.Time) {
	t.Helper()
	if _, err := s.Resume(now); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
}

func mustUse(t *testing.T, s *Store, label string, now time.Time) {
	t.Helper()
	if _, err := s.Use(label, "", label+" antenna", now); err != nil {
		t.Fatalf("Use(%s) returned error: %v", label, err)
	}
}
