// Package cache holds the in-memory listing cache: one entry per target
// index, written by the poller and read by the executor. The store is guarded
// by a lock because writer and reader run on separate goroutines and an entry
// replacement must be observed whole.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/tgstars/giftsniper/internal/entity"
)

// Store is the component-owned listing cache. Entries are whole-value
// replacements; readers never see a partially updated entry.
type Store struct {
	mu      sync.RWMutex
	entries map[int]entity.CacheEntry
}

// New returns an empty cache.
func New() *Store {
	return &Store{entries: make(map[int]entity.CacheEntry)}
}

// Put replaces the entry for the given target index.
func (s *Store) Put(entry entity.CacheEntry) {
	s.mu.Lock()
	s.entries[entry.TargetIndex] = entry
	s.mu.Unlock()
}

// Get returns the cached entry for a target index, if any.
func (s *Store) Get(targetIndex int) (entity.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[targetIndex]
	return entry, ok
}

// Available returns all cached listings enriched with their target snapshots,
// sorted ascending by price across all targets. The global cheapest-first
// order (rather than per-target fairness) is the documented purchase policy:
// the executor consumes candidates in exactly this order.
func (s *Store) Available() []entity.AvailableGift {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.AvailableGift
	for _, entry := range s.entries {
		if entry.Listing == nil {
			continue
		}
		out = append(out, entity.AvailableGift{
			Listing:     *entry.Listing,
			TargetIndex: entry.TargetIndex,
			TargetName:  entry.Target.Name,
			MaxPrice:    entry.Target.MaxPrice,
			UpdatedAt:   entry.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// TargetStats describes cache freshness for one target.
type TargetStats struct {
	TargetName string
	HasListing bool
	UpdatedAt  time.Time
}

// Stats reports per-target cache state for display surfaces.
func (s *Store) Stats() map[int]TargetStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]TargetStats, len(s.entries))
	for idx, entry := range s.entries {
		out[idx] = TargetStats{
			TargetName: entry.Target.Name,
			HasListing: entry.Listing != nil,
			UpdatedAt:  entry.UpdatedAt,
		}
	}
	return out
}

// Len returns the number of cached entries, listing-bearing or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[int]entity.CacheEntry)
	s.mu.Unlock()
}
