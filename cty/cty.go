// Package cty resolves callsigns to DXCC entities from a cty.plist prefix
// database using a trie-backed longest-prefix match. The comparison report
// uses it to count distinct countries worked per antenna.
package cty

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"howett.net/plist"
)

// PrefixInfo is the metadata stored per CTY entry.
type PrefixInfo struct {
	Country       string  `plist:"Country"`
	Prefix        string  `plist:"Prefix"`
	ADIF          int     `plist:"ADIF"`
	CQZone        int     `plist:"CQZone"`
	ITUZone       int     `plist:"ITUZone"`
	Continent     string  `plist:"Continent"`
	Latitude      float64 `plist:"Latitude"`
	Longitude     float64 `plist:"Longitude"`
	GMTOffset     float64 `plist:"GMTOffset"`
	ExactCallsign bool    `plist:"ExactCallsign"`
}

// Database holds the plist data and a read-only prefix trie. Lookup results
// are memoized, including misses, since an analyze run queries the same
// callsigns repeatedly.
type Database struct {
	data map[string]PrefixInfo
	trie trie

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	info *PrefixInfo
	ok   bool
}

// trie is a read-only prefix trie over CTY keys: walk the callsign bytes
// from the root and remember the last terminal node seen, which is the
// longest matching prefix. Nodes live in a slice so child links are small
// integer indices.
type trie struct {
	nodes []trieNode
}

type trieNode struct {
	next        map[byte]int
	terminalKey string
}

func buildTrie(keys []string) trie {
	tr := trie{nodes: []trieNode{{next: make(map[byte]int)}}}
	for _, key := range keys {
		if key == "" {
			continue
		}
		state := 0
		for i := 0; i < len(key); i++ {
			ch := key[i]
			next := tr.nodes[state].next
			if next == nil {
				next = make(map[byte]int)
				tr.nodes[state].next = next
			}
			child, ok := next[ch]
			if !ok {
				child = len(tr.nodes)
				tr.nodes = append(tr.nodes, trieNode{})
				next[ch] = child
			}
			state = child
		}
		tr.nodes[state].terminalKey = key
	}
	return tr
}

func (tr *trie) longestPrefixKey(cs string) (string, bool) {
	if tr == nil || len(tr.nodes) == 0 || cs == "" {
		return "", false
	}
	state := 0
	best := ""
	for i := 0; i < len(cs); i++ {
		next := tr.nodes[state].next
		if next == nil {
			break
		}
		child, ok := next[cs[i]]
		if !ok {
			break
		}
		state = child
		if tr.nodes[state].terminalKey != "" {
			best = tr.nodes[state].terminalKey
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Load reads cty.plist from disk.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cty: open plist: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes CTY data from a reader. Keys are normalized to
// uppercase before the trie is built.
func LoadFromReader(r io.ReadSeeker) (*Database, error) {
	var raw map[string]PrefixInfo
	if err := plist.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("cty: decode plist: %w", err)
	}
	data := make(map[string]PrefixInfo, len(raw))
	keys := make([]string, 0, len(raw))
	for k, v := range raw {
		norm := strings.ToUpper(strings.TrimSpace(k))
		data[norm] = v
		keys = append(keys, norm)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) == len(keys[j]) {
			return keys[i] < keys[j]
		}
		return len(keys[i]) > len(keys[j])
	})
	return &Database{
		data:  data,
		trie:  buildTrie(keys),
		cache: make(map[string]cacheEntry),
	}, nil
}

var suffixes = []string{"/QRP", "/P", "/M", "/MM", "/AM"}

func normalizeCallsign(cs string) string {
	cs = strings.ToUpper(strings.TrimSpace(cs))
	for _, suf := range suffixes {
		if strings.HasSuffix(cs, suf) {
			return strings.TrimSuffix(cs, suf)
		}
	}
	return cs
}

// Lookup returns metadata for the callsign, false when no prefix matches.
func (db *Database) Lookup(cs string) (*PrefixInfo, bool) {
	cs = normalizeCallsign(cs)

	db.cacheMu.Lock()
	entry, hit := db.cache[cs]
	db.cacheMu.Unlock()
	if hit {
		return entry.info, entry.ok
	}

	var info *PrefixInfo
	ok := false
	if exact, found := db.data[cs]; found {
		dup := exact
		info, ok = &dup, true
	} else if key, found := db.trie.longestPrefixKey(cs); found {
		dup := db.data[key]
		info, ok = &dup, true
	}

	db.cacheMu.Lock()
	db.cache[cs] = cacheEntry{info: info, ok: ok}
	db.cacheMu.Unlock()
	return info, ok
}

// Country is the enrichment hook the analysis engine consumes.
func (db *Database) Country(cs string) (string, bool) {
	info, ok := db.Lookup(cs)
	if !ok {
		return "", false
	}
	return info.Country, true
}
