package pskreporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache stores fetched spots per comparison run so re-analysis of the same
// session never re-queries the service. Cache files live outside the artifact
// directory so the atomic artifact publish cannot clobber them.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// RunKey derives the run identity for a comparison: a hash of the operator
// callsign and the session start instant. The same session always maps to the
// same cache file.
func RunKey(callsign string, sessionStart time.Time) string {
	seed := fmt.Sprintf("%s|%d", callsign, sessionStart.UTC().Unix())
	return fmt.Sprintf("%016x", xxh3.HashString(seed))
}

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Load returns the cached spots for a run key, reporting whether a cache file
// existed.
func (c *Cache) Load(key string) ([]Spot, bool, error) {
	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pskreporter: read cache: %w", err)
	}
	var spots []Spot
	if err := json.Unmarshal(data, &spots); err != nil {
		return nil, false, fmt.Errorf("pskreporter: parse cache: %w", err)
	}
	return spots, true, nil
}

// Has reports whether a cache file exists for the run key.
func (c *Cache) Has(key string) bool {
	_, err := os.Stat(c.pathFor(key))
	return err == nil
}

// Save writes the spots for a run key. Empty result sets are not cached so a
// later run inside the lookback window can still try the network.
func (c *Cache) Save(key string, spots []Spot) error {
	if len(spots) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("pskreporter: ensure cache directory: %w", err)
	}
	data, err := json.MarshalIndent(spots, "", "  ")
	if err != nil {
		return fmt.Errorf("pskreporter: encode cache: %w", err)
	}
	tmp := c.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pskreporter: write cache: %w", err)
	}
	if err := os.Rename(tmp, c.pathFor(key)); err != nil {
		return fmt.Errorf("pskreporter: publish cache: %w", err)
	}
	return nil
}
