// Package gridstore persists callsign -> grid mappings observed across
// comparison runs in a Pebble key/value store. A station that sent its grid
// in one session can then be placed on the map and bucketed into a sector in
// later sessions where it never repeated the grid.
package gridstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

const (
	recordVersion = 1
	callPrefix    = "c|"
)

var errStoreClosed = errors.New("gridstore: store is closed")

const (
	defaultCacheSizeBytes  = int64(8 << 20)
	defaultBloomFilterBits = 10
	defaultWriteQueueDepth = 64
)

// Options controls Pebble tuning and writer buffering. Zero fields get safe
// defaults.
type Options struct {
	CacheSizeBytes        int64
	BloomFilterBitsPerKey int
	WriteQueueDepth       int
}

// Record is one stored callsign with its last reported grid.
type Record struct {
	Call         string
	Grid         string
	Observations int
	UpdatedAt    time.Time
}

// Store manages the Pebble database. All writes funnel through a single
// writer goroutine; reads go straight to Pebble.
type Store struct {
	db     *pebble.DB
	writes chan writeRequest
	done   chan struct{}
	cache  *pebble.Cache

	mu     sync.Mutex
	closed bool
}

type writeKind int

const (
	writeUpsert writeKind = iota
	writePurge
)

type writeRequest struct {
	kind   writeKind
	recs   []Record
	cutoff time.Time
	resp   chan writeResult
}

type writeResult struct {
	removed int64
	err     error
}

func sanitizeOptions(opts Options) Options {
	if opts.CacheSizeBytes <= 0 {
		opts.CacheSizeBytes = defaultCacheSizeBytes
	}
	if opts.BloomFilterBitsPerKey <= 0 {
		opts.BloomFilterBitsPerKey = defaultBloomFilterBits
	}
	if opts.WriteQueueDepth <= 0 {
		opts.WriteQueueDepth = defaultWriteQueueDepth
	}
	return opts
}

// Open opens or creates the grid store at path and starts the writer.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("gridstore: database path is empty")
	}
	opts = sanitizeOptions(opts)

	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("gridstore: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("gridstore: stat path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("gridstore: ensure directory: %w", err)
	}

	pebbleOpts := &pebble.Options{
		Cache: pebble.NewCache(opts.CacheSizeBytes),
	}
	filter := bloom.FilterPolicy(opts.BloomFilterBitsPerKey)
	pebbleOpts.Levels = make([]pebble.LevelOptions, 7)
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i] = pebble.LevelOptions{
			FilterPolicy: filter,
			FilterType:   pebble.TableFilter,
		}
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		pebbleOpts.Cache.Unref()
		return nil, fmt.Errorf("gridstore: open: %w", err)
	}

	store := &Store{
		db:     db,
		writes: make(chan writeRequest, opts.WriteQueueDepth),
		done:   make(chan struct{}),
		cache:  pebbleOpts.Cache,
	}
	go store.writeLoop()
	return store, nil
}

// Close drains the writer goroutine and closes Pebble.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.closeWriter() {
		<-s.done
	}
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

// Upsert records one call -> grid observation. An existing record keeps its
// observation count running; the grid is replaced by the newest report.
func (s *Store) Upsert(call, grid string, now time.Time) error {
	return s.UpsertBatch([]Record{{Call: call, Grid: grid, Observations: 1, UpdatedAt: now}})
}

// UpsertBatch applies multiple observations through the single writer.
func (s *Store) UpsertBatch(recs []Record) error {
	if s == nil || s.db == nil {
		return errors.New("gridstore: store is not initialized")
	}
	if len(recs) == 0 {
		return nil
	}
	resp := make(chan writeResult, 1)
	if err := s.enqueue(writeRequest{kind: writeUpsert, recs: recs, resp: resp}); err != nil {
		return err
	}
	result := <-resp
	return result.err
}

// Get returns the stored record for a callsign, or (nil, nil) when unknown.
func (s *Store) Get(call string) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("gridstore: store is not initialized")
	}
	call = normalizeCall(call)
	if call == "" {
		return nil, errors.New("gridstore: call is empty")
	}
	value, closer, err := s.db.Get([]byte(callPrefix + call))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("gridstore: get %s: %w", call, err)
	}
	defer closer.Close()
	rec, err := decodeRecord(call, value)
	if err != nil {
		return nil, fmt.Errorf("gridstore: decode %s: %w", call, err)
	}
	return &rec, nil
}

// Grid is the lookup hook the analysis engine consumes.
func (s *Store) Grid(call string) (string, bool) {
	rec, err := s.Get(call)
	if err != nil || rec == nil || rec.Grid == "" {
		return "", false
	}
	return rec.Grid, true
}

// PurgeOlderThan deletes records not updated since the cutoff. Returns the
// number removed.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("gridstore: store is not initialized")
	}
	resp := make(chan writeResult, 1)
	if err := s.enqueue(writeRequest{kind: writePurge, cutoff: cutoff, resp: resp}); err != nil {
		return 0, err
	}
	result := <-resp
	return result.removed, result.err
}

// Count iterates the call keyspace. The store is small; a scan is fine.
func (s *Store) Count() (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("gridstore: store is not initialized")
	}
	iter, err := s.db.NewIter(prefixIterOptions())
	if err != nil {
		return 0, fmt.Errorf("gridstore: count iterator: %w", err)
	}
	defer iter.Close()
	var n int64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("gridstore: count: %w", err)
	}
	return n, nil
}

func (s *Store) enqueue(req writeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	s.writes <- req
	return nil
}

func (s *Store) closeWriter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.writes)
	return true
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for req := range s.writes {
		var result writeResult
		switch req.kind {
		case writeUpsert:
			result.err = s.applyUpserts(req.recs)
		case writePurge:
			result.removed, result.err = s.applyPurge(req.cutoff)
		}
		req.resp <- result
	}
}

func (s *Store) applyUpserts(recs []Record) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, rec := range recs {
		call := normalizeCall(rec.Call)
		if call == "" {
			continue
		}
		merged := rec
		merged.Call = call
		if prev, err := s.Get(call); err == nil && prev != nil {
			merged.Observations += prev.Observations
			if merged.Grid == "" {
				merged.Grid = prev.Grid
			}
		}
		if err := batch.Set([]byte(callPrefix+call), encodeRecord(merged), nil); err != nil {
			return fmt.Errorf("gridstore: batch set %s: %w", call, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("gridstore: commit batch: %w", err)
	}
	return nil
}

func (s *Store) applyPurge(cutoff time.Time) (int64, error) {
	iter, err := s.db.NewIter(prefixIterOptions())
	if err != nil {
		return 0, fmt.Errorf("gridstore: purge iterator: %w", err)
	}
	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		call := strings.TrimPrefix(string(iter.Key()), callPrefix)
		rec, err := decodeRecord(call, iter.Value())
		if err != nil {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			stale = append(stale, key)
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return 0, fmt.Errorf("gridstore: purge scan: %w", err)
	}
	iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, fmt.Errorf("gridstore: purge delete: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("gridstore: commit purge: %w", err)
	}
	return int64(len(stale)), nil
}

func prefixIterOptions() *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: []byte(callPrefix),
		UpperBound: []byte(callPrefix + "\xff"),
	}
}

func normalizeCall(call string) string {
	return strings.ToUpper(strings.TrimSpace(call))
}

// Record encoding: version byte, updatedAt int64, observations uint32, grid
// length byte, grid bytes.
func encodeRecord(rec Record) []byte {
	grid := rec.Grid
	if len(grid) > 255 {
		grid = grid[:255]
	}
	buf := make([]byte, 1+8+4+1+len(grid))
	buf[0] = recordVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(rec.UpdatedAt.UTC().Unix()))
	binary.BigEndian.PutUint32(buf[9:13], uint32(rec.Observations))
	buf[13] = byte(len(grid))
	copy(buf[14:], grid)
	return buf
}

func decodeRecord(call string, value []byte) (Record, error) {
	if len(value) < 14 || value[0] != recordVersion {
		return Record{}, errors.New("gridstore: invalid record encoding")
	}
	gridLen := int(value[13])
	if len(value) < 14+gridLen {
		return Record{}, errors.New("gridstore: truncated record")
	}
	return Record{
		Call:         call,
		Grid:         string(value[14 : 14+gridLen]),
		Observations: int(binary.BigEndian.Uint32(value[9:13])),
		UpdatedAt:    time.Unix(int64(binary.BigEndian.Uint64(value[1:9])), 0).UTC(),
	}, nil
}
