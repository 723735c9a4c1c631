package antenna

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "antennas.json"))
}

func TestEmptyRegistry(t *testing.T) {
	r := newTestRegistry(t)
	defs, err := r.All()
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("missing file yielded %d definitions, want 0", len(defs))
	}
}

func TestDefineAndGet(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Date(2023, 10, 15, 12, 0, 0, 0, time.UTC)
	existed, err := r.Define("efhw", "40m end-fed half-wave at 10m", now)
	if err != nil {
		t.Fatalf("Define returned error: %v", err)
	}
	if existed {
		t.Fatalf("Define reported existing for a new label")
	}
	def, ok, err := r.Get("efhw")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if def.Description != "40m end-fed half-wave at 10m" {
		t.Fatalf("Description = %q", def.Description)
	}
	if !def.Created.Equal(now) || !def.Updated.Equal(now) {
		t.Fatalf("timestamps = %v / %v, want %v", def.Created, def.Updated, now)
	}
}

func TestDefineUpsertKeepsCreated(t *testing.T) {
	r := newTestRegistry(t)
	created := time.Date(2023, 10, 15, 12, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	if _, err := r.Define("vert", "quarter-wave vertical", created); err != nil {
		t.Fatalf("Define returned error: %v", err)
	}
	existed, err := r.Define("vert", "quarter-wave vertical, 16 radials", updated)
	if err != nil {
		t.Fatalf("redefine returned error: %v", err)
	}
	if !existed {
		t.Fatalf("redefine reported new for an existing label")
	}
	def, _, err := r.Get("vert")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if def.Description != "quarter-wave vertical, 16 radials" {
		t.Fatalf("Description = %q after update", def.Description)
	}
	if !def.Created.Equal(created) {
		t.Fatalf("Created = %v, want original %v", def.Created, created)
	}
	if !def.Updated.Equal(updated) {
		t.Fatalf("Updated = %v, want %v", def.Updated, updated)
	}
}

func TestLabelsSorted(t *testing.T) {
	r := newTestRegistry(t)
	now := time.Now().UTC()
	for _, label := range []string{"vert", "efhw", "loop"} {
		if _, err := r.Define(label, label, now); err != nil {
			t.Fatalf("Define(%s) returned error: %v", label, err)
		}
	}
	labels, err := r.Labels()
	if err != nil {
		t.Fatalf("Labels returned error: %v", err)
	}
	want := []string{"efhw", "loop", "vert"}
	if len(labels) != len(want) {
		t.Fatalf("Labels() = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("Labels() = %v, want %v", labels, want)
		}
	}
}
