// Package artifact persists one completed comparison run as an immutable
// directory: session metadata, the full textual report, per-band raw record
// dumps, map data and a SQLite archive of the matched records. The directory
// is staged under a temporary name and renamed into place, so a failed run
// never leaves a half-written artifact observable as complete.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"antcmp/analysis"
	"antcmp/pskreporter"
	"antcmp/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const dirPrefix = "comparison_"

// IDFor returns the artifact directory name for a session start time.
func IDFor(sessionStart time.Time) string {
	return dirPrefix + sessionStart.UTC().Format("20060102_150405")
}

// Note is one post-publish annotation attached to a comparison.
type Note struct {
	Text string    `json:"text"`
	Time time.Time `json:"timestamp"`
}

// Meta is the session.json document.
type Meta struct {
	SessionStart time.Time          `json:"session_start"`
	SessionEnd   time.Time          `json:"session_end"`
	Grid         string             `json:"my_grid"`
	Lat          float64            `json:"my_lat"`
	Lon          float64            `json:"my_lon"`
	Solar        map[string]string  `json:"solar,omitempty"`
	Intervals    []session.Interval `json:"intervals"`
	Notes        []Note             `json:"notes,omitempty"`
}

// Run is everything one analyze invocation hands the writer.
type Run struct {
	Meta        Meta
	ReportLines []string
	RxRaw       map[string]map[string][]string           // antenna -> band -> raw decode lines
	TxRaw       map[string]map[string][]pskreporter.Spot // antenna -> band -> raw spots
	Map         analysis.MapData
	CachedSpots []pskreporter.Spot
	RxRecords   []MatchedRecord
	TxSpots     []MatchedSpot
}

// Writer publishes comparison artifacts under a data directory.
type Writer struct {
	DataDir string
}

// NewWriter returns a writer rooted at dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{DataDir: dataDir}
}

// Publish stages the artifact in a temporary directory and renames it into
// place. Re-analyzing the same session replaces the previous artifact in the
// same atomic step. Returns the final artifact path.
func (w *Writer) Publish(run Run) (string, error) {
	id := IDFor(run.Meta.SessionStart)
	final := filepath.Join(w.DataDir, id)
	if err := os.MkdirAll(w.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: ensure data directory: %w", err)
	}
	tmp, err := os.MkdirTemp(w.DataDir, "."+id+"-")
	if err != nil {
		return "", fmt.Errorf("artifact: stage directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := w.stage(tmp, run); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return "", fmt.Errorf("artifact: chmod stage: %w", err)
	}
	if _, err := os.Stat(final); err == nil {
		if err := os.RemoveAll(final); err != nil {
			return "", fmt.Errorf("artifact: replace previous artifact: %w", err)
		}
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("artifact: publish: %w", err)
	}
	return final, nil
}

func (w *Writer) stage(dir string, run Run) error {
	if err := writeJSON(filepath.Join(dir, "session.json"), run.Meta); err != nil {
		return err
	}
	report := strings.Join(run.ReportLines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("artifact: write report: %w", err)
	}

	for antenna, byBand := range run.RxRaw {
		for bandName, lines := range byBand {
			if len(lines) == 0 {
				continue
			}
			bandDir := filepath.Join(dir, bandName)
			if err := os.MkdirAll(bandDir, 0o755); err != nil {
				return fmt.Errorf("artifact: band directory: %w", err)
			}
			body := strings.Join(lines, "\n") + "\n"
			path := filepath.Join(bandDir, antenna+"_all.txt")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				return fmt.Errorf("artifact: write raw decodes: %w", err)
			}
		}
	}
	for antenna, byBand := range run.TxRaw {
		for bandName, spots := range byBand {
			if len(spots) == 0 {
				continue
			}
			bandDir := filepath.Join(dir, bandName)
			if err := os.MkdirAll(bandDir, 0o755); err != nil {
				return fmt.Errorf("artifact: band directory: %w", err)
			}
			if err := writeJSON(filepath.Join(bandDir, antenna+"_pskreporter.json"), spots); err != nil {
				return err
			}
		}
	}

	if err := writeJSON(filepath.Join(dir, "map_data.json"), run.Map); err != nil {
		return err
	}
	if len(run.CachedSpots) > 0 {
		if err := writeJSON(filepath.Join(dir, "pskreporter_cache.json"), run.CachedSpots); err != nil {
			return err
		}
	}
	return writeArchive(filepath.Join(dir, "records.db"), run.RxRecords, run.TxSpots)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AttachNote appends a note to a published comparison's metadata. This is
// the only mutation allowed after publish.
func (w *Writer) AttachNote(id, text string, now time.Time) error {
	path := filepath.Join(w.DataDir, id, "session.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact: comparison %s not found", id)
		}
		return fmt.Errorf("artifact: read session metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("artifact: parse session metadata: %w", err)
	}
	meta.Notes = append(meta.Notes, Note{Text: text, Time: now.UTC()})
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode session metadata: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("artifact: write session metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifact: publish session metadata: %w", err)
	}
	return nil
}

// Info summarizes one published comparison for listings.
type Info struct {
	ID        string
	Path      string
	HasReport bool
	Start     time.Time
	End       time.Time
	Antennas  []string
}

// List returns published comparisons, newest first.
func (w *Writer) List() ([]Info, error) {
	entries, err := os.ReadDir(w.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: read data directory: %w", err)
	}
	var out []Info
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		info := Info{
			ID:   entry.Name(),
			Path: filepath.Join(w.DataDir, entry.Name()),
		}
		if _, err := os.Stat(filepath.Join(info.Path, "report.txt")); err == nil {
			info.HasReport = true
		}
		if data, err := os.ReadFile(filepath.Join(info.Path, "session.json")); err == nil {
			var meta Meta
			if err := json.Unmarshal(data, &meta); err == nil {
				info.Start = meta.SessionStart
				info.End = meta.SessionEnd
				seen := make(map[string]bool)
				for _, iv := range meta.Intervals {
					if !seen[iv.Antenna] {
						seen[iv.Antenna] = true
						info.Antennas = append(info.Antennas, iv.Antenna)
					}
				}
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Report returns the stored report text for a published comparison.
func (w *Writer) Report(id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(w.DataDir, id, "report.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("artifact: comparison %s has no report", id)
		}
		return "", fmt.Errorf("artifact: read report: %w", err)
	}
	return string(data), nil
}
