package gridstore

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "grids"), Options{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2023, 10, 15, 14, 0, 0, 0, time.UTC)
	if err := s.Upsert("k1aa", "FN31", now); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	rec, err := s.Get("K1AA")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec == nil || rec.Grid != "FN31" || rec.Observations != 1 {
		t.Fatalf("Get = %+v", rec)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt = %v, want %v", rec.UpdatedAt, now)
	}
	missing, err := s.Get("W9XYZ")
	if err != nil || missing != nil {
		t.Fatalf("Get missing = (%+v, %v), want (nil, nil)", missing, err)
	}
}

func TestUpsertAccumulatesObservationsAndKeepsGridOnEmpty(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2023, 10, 15, 14, 0, 0, 0, time.UTC)
	if err := s.Upsert("K1AA", "FN31", now); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Upsert("K1AA", "", now.Add(time.Hour)); err != nil {
		t.Fatalf("second Upsert returned error: %v", err)
	}
	rec, err := s.Get("K1AA")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec.Observations != 2 {
		t.Fatalf("Observations = %d, want 2", rec.Observations)
	}
	if rec.Grid != "FN31" {
		t.Fatalf("empty grid overwrote stored grid: %q", rec.Grid)
	}
	if err := s.Upsert("K1AA", "FN32", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("third Upsert returned error: %v", err)
	}
	rec, _ = s.Get("K1AA")
	if rec.Grid != "FN32" {
		t.Fatalf("newest grid not stored: %q", rec.Grid)
	}
}

func TestGridLookupHook(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	if err := s.Upsert("JA1XYZ", "PM95", now); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	grid, ok := s.Grid("JA1XYZ")
	if !ok || grid != "PM95" {
		t.Fatalf("Grid = (%q, %v), want PM95", grid, ok)
	}
	if _, ok := s.Grid("N0CALL"); ok {
		t.Fatalf("Grid hit for unknown call")
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := openTestStore(t)
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC)
	if err := s.Upsert("K1AA", "FN31", old); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Upsert("K6LA", "DM04", recent); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	removed, err := s.PurgeOlderThan(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PurgeOlderThan returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if rec, _ := s.Get("K1AA"); rec != nil {
		t.Fatalf("purged record still present: %+v", rec)
	}
	count, err := s.Count()
	if err != nil || count != 1 {
		t.Fatalf("Count = (%d, %v), want 1", count, err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "grids")
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := s.Upsert("VK2ABC", "QF56", time.Now().UTC()); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	s2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer s2.Close()
	grid, ok := s2.Grid("VK2ABC")
	if !ok || grid != "QF56" {
		t.Fatalf("Grid after reopen = (%q, %v), want QF56", grid, ok)
	}
}
