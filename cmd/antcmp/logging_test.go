package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"antcmp/config"
)

type captureSink struct {
	lines []string
}

func (s *captureSink) WriteLine(line string, now time.Time) { s.lines = append(s.lines, line) }
func (s *captureSink) Close() error                         { return nil }

func TestFanoutSplitsLines(t *testing.T) {
	sink := &captureSink{}
	f := &logFanout{console: sink}
	f.Write([]byte("first line\nsecond "))
	f.Write([]byte("half\n"))
	if len(sink.lines) != 2 {
		t.Fatalf("lines = %v", sink.lines)
	}
	if sink.lines[0] != "first line" || sink.lines[1] != "second half" {
		t.Fatalf("lines = %v", sink.lines)
	}
}

func TestFanoutDuplicatesToFileSink(t *testing.T) {
	console := &captureSink{}
	file := &captureSink{}
	f := &logFanout{console: console, file: file}
	f.Write([]byte("hello\n"))
	if len(console.lines) != 1 || len(file.lines) != 1 {
		t.Fatalf("console = %v, file = %v", console.lines, file.lines)
	}
}

func TestDailyFileSinkWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	now := time.Date(2023, 10, 15, 14, 0, 0, 0, time.UTC)
	sink.WriteLine("session started", now)
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "15-Oct-2023.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "session started") {
		t.Fatalf("log content = %q", data)
	}
}

func TestCleanupOldLogsHonorsRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "01-Jan-2023.log")
	recent := filepath.Join(dir, "14-Oct-2023.log")
	for _, p := range []string{old, recent} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	now := time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 7); err != nil {
		t.Fatalf("cleanupOldLogs: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old log not removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent log removed: %v", err)
	}
}

func TestSetupLoggingDisabledFileSink(t *testing.T) {
	f, err := setupLogging(config.LoggingConfig{}, os.Stderr)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	if f.file != nil {
		t.Fatalf("file sink created while logging disabled")
	}
}
