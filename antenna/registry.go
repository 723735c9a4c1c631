// Package antenna maintains the small on-disk registry of defined antennas.
// Definitions are upserted by label and never auto-deleted; session events
// snapshot the description at switch time, so editing a definition here never
// rewrites history.
package antenna

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Definition describes one antenna keyed by its label.
type Definition struct {
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// Registry is the label -> definition document, read-modify-written on every
// mutating operation.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry returns a registry backed by the given JSON file.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// All loads every definition. A missing file is an empty registry.
func (r *Registry) All() (map[string]Definition, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Definition{}, nil
		}
		return nil, fmt.Errorf("antenna: read registry: %w", err)
	}
	defs := make(map[string]Definition)
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("antenna: parse registry: %w", err)
	}
	return defs, nil
}

// Get returns the definition for a label.
func (r *Registry) Get(label string) (Definition, bool, error) {
	defs, err := r.All()
	if err != nil {
		return Definition{}, false, err
	}
	def, ok := defs[label]
	return def, ok, nil
}

// Define creates or updates an antenna. The created timestamp survives
// updates; updated always moves forward. Returns true when the label already
// existed.
func (r *Registry) Define(label, description string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defs, err := r.All()
	if err != nil {
		return false, err
	}
	prev, existed := defs[label]
	def := Definition{
		Description: description,
		Created:     now.UTC(),
		Updated:     now.UTC(),
	}
	if existed {
		def.Created = prev.Created
	}
	defs[label] = def
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return existed, fmt.Errorf("antenna: ensure registry directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return existed, fmt.Errorf("antenna: encode registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return existed, fmt.Errorf("antenna: write registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return existed, fmt.Errorf("antenna: publish registry: %w", err)
	}
	return existed, nil
}

// Labels returns the defined labels in sorted order.
func (r *Registry) Labels() ([]string, error) {
	defs, err := r.All()
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(defs))
	for label := range defs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}
