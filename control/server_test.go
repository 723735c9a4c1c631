package control

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"antcmp/antenna"
	"antcmp/session"
)

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	dir := t.TempDir()
	store := session.NewStore(filepath.Join(dir, "antenna_log.json"))
	registry := antenna.NewRegistry(filepath.Join(dir, "antennas.json"))
	return NewServer("127.0.0.1", 0, store, registry), store
}

func at(minute int) time.Time {
	return time.Date(2023, 10, 15, 14, minute, 0, 0, time.UTC)
}

func TestStatusWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t)
	lines := srv.execute("STATUS", "", at(0))
	if len(lines) != 1 || lines[0] != "no active session" {
		t.Fatalf("STATUS = %v", lines)
	}
}

func TestUseSwitchesAntenna(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.Start("test", nil, at(0)); err != nil {
		t.Fatalf("start: %v", err)
	}
	lines := srv.execute("USE", "Vertical", at(5))
	if len(lines) != 1 || lines[0] != "now using vertical" {
		t.Fatalf("USE = %v", lines)
	}

	st, err := store.Status(at(10))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.CurrentAntenna != "vertical" {
		t.Fatalf("current antenna = %q, want vertical", st.CurrentAntenna)
	}

	lines = srv.execute("STATUS", "", at(10))
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "antenna: vertical") {
		t.Fatalf("STATUS missing antenna line:\n%s", joined)
	}
}

func TestUseRejectedWhileInactive(t *testing.T) {
	srv, _ := newTestServer(t)
	lines := srv.execute("USE", "vertical", at(0))
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "error:") {
		t.Fatalf("USE without session = %v", lines)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.Start("test", nil, at(0)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if lines := srv.execute("PAUSE", "", at(5)); lines[0] != "session paused" {
		t.Fatalf("PAUSE = %v", lines)
	}
	if lines := srv.execute("PAUSE", "", at(6)); !strings.HasPrefix(lines[0], "error:") {
		t.Fatalf("double PAUSE = %v", lines)
	}
	if lines := srv.execute("RESUME", "", at(10)); lines[0] != "session resumed" {
		t.Fatalf("RESUME = %v", lines)
	}
}

func TestNoteAppendsToSession(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.Start("test", nil, at(0)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if lines := srv.execute("NOTE", "QSB on 20m", at(5)); lines[0] != "noted" {
		t.Fatalf("NOTE = %v", lines)
	}
	st, err := store.Status(at(10))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(st.Notes) != 1 || st.Notes[0] != "QSB on 20m" {
		t.Fatalf("notes = %v", st.Notes)
	}
}

func TestAntennasListsRegistry(t *testing.T) {
	srv, _ := newTestServer(t)
	if _, err := srv.registry.Define("vertical", "43ft vertical", at(0)); err != nil {
		t.Fatalf("define: %v", err)
	}
	if _, err := srv.registry.Define("loop", "", at(1)); err != nil {
		t.Fatalf("define: %v", err)
	}
	lines := srv.execute("ANTENNAS", "", at(5))
	if len(lines) != 2 {
		t.Fatalf("ANTENNAS = %v", lines)
	}
	if lines[0] != "loop" || lines[1] != "vertical - 43ft vertical" {
		t.Fatalf("ANTENNAS = %v", lines)
	}
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	lines := srv.execute("FROBNICATE", "", at(0))
	if len(lines) != 1 || !strings.Contains(lines[0], "unknown command") {
		t.Fatalf("unknown = %v", lines)
	}
}

func TestSplitCommand(t *testing.T) {
	cmd, arg := splitCommand("use  vertical")
	if cmd != "USE" || arg != "vertical" {
		t.Fatalf("splitCommand = %q %q", cmd, arg)
	}
	cmd, arg = splitCommand("status")
	if cmd != "STATUS" || arg != "" {
		t.Fatalf("splitCommand = %q %q", cmd, arg)
	}
}
