// Package entity holds the core value types shared by the cache, poller and
// executor: marketplace listings, cache entries and their target snapshots.
package entity

import "time"

// Listing is one discovered resale offer for a collectible gift. Listings are
// ephemeral: they are rediscovered on every poll sweep and never persisted.
type Listing struct {
	// ID is the collectible identifier of this concrete instance
	// (e.g. "SnoopDogg-13392"), distinct from the gift type id.
	ID string
	// GiftID is the gift type this listing belongs to.
	GiftID int64
	// Price in whole stars.
	Price int64
	Name  string
	// Link is the deep link used to purchase this exact instance.
	Link string
	// StarsEligible reports whether the seller accepts stars at all.
	// Listings sold for TON only are never candidates.
	StarsEligible bool
	Attributes    []string
}

// TargetSnapshot records the target parameters that were in effect when a
// cache entry was written. Readers compare against this snapshot, not against
// the live target list, which may have changed since.
type TargetSnapshot struct {
	GiftID   int64
	Name     string
	MaxPrice int64
}

// CacheEntry is the cached poll result for one target index.
// Invariant: when Listing is non-nil, Listing.Price <= Target.MaxPrice;
// the poller enforces the ceiling at discovery time.
type CacheEntry struct {
	TargetIndex int
	Listing     *Listing
	UpdatedAt   time.Time
	Target      TargetSnapshot
}

// AvailableGift is a listing enriched with its target snapshot, the shape
// handed to the executor and to read-only display surfaces.
type AvailableGift struct {
	Listing
	TargetIndex int
	TargetName  string
	MaxPrice    int64
	UpdatedAt   time.Time
}
