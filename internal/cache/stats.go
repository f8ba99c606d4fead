package cache

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Stats tracks cumulative SharedCache performance, persisted to a sidecar
// JSON file updated atomically after every lookup/store/evict (spec.md
// §4.2: "total entries, total size, hit count, miss count, average
// restore time, cumulative time saved"), grounded on
// quantmind-br-gendocs's llmcache.CacheStats hit/miss/eviction counters.
type Stats struct {
	mu sync.Mutex

	TotalEntries       int           `json:"totalEntries"`
	TotalSizeBytes     int64         `json:"totalSizeBytes"`
	Hits               int64         `json:"hits"`
	Misses             int64         `json:"misses"`
	Evictions          int64         `json:"evictions"`
	TotalRestoreTimeMs int64         `json:"totalRestoreTimeMs"`
	TimeSavedMs        int64         `json:"timeSavedMs"`
	path               string        `json:"-"`
}

func loadStats(path string) *Stats {
	s := &Stats{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	_ = json.Unmarshal(raw, s)
	s.path = path
	return s
}

func (s *Stats) recordHit(restoreTime time.Duration, timeSaved time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Hits++
	s.TotalRestoreTimeMs += restoreTime.Milliseconds()
	s.TimeSavedMs += timeSaved.Milliseconds()
	s.saveLocked()
}

func (s *Stats) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Misses++
	s.saveLocked()
}

func (s *Stats) recordStore(entryDelta int, sizeDelta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalEntries += entryDelta
	s.TotalSizeBytes += sizeDelta
	s.saveLocked()
}

func (s *Stats) recordEviction(sizeFreed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalEntries--
	s.TotalSizeBytes -= sizeFreed
	s.Evictions++
	s.saveLocked()
}

// AverageRestoreTimeMs returns the mean restore time across every
// recorded hit, or zero when there have been none yet.
func (s *Stats) AverageRestoreTimeMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Hits == 0 {
		return 0
	}
	return s.TotalRestoreTimeMs / s.Hits
}

// saveLocked writes the stats file atomically; caller must hold s.mu.
func (s *Stats) saveLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.path, raw, 0o644)
}
