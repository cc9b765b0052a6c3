// Package clients holds session implementations behind the market.Session
// boundary. The real delegated-account transport is owned by the surrounding
// application; SimulateSession is the built-in dry-run marketplace.
package clients

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
)

// SimulateSession is an in-memory marketplace for dry runs: seeded listings,
// a starting balance, purchases that consume listings and stars. It follows
// the real platform's quirk of acknowledging purchases without a payload, so
// the engine exercises its balance-verification path unchanged.
type SimulateSession struct {
	mu       sync.Mutex
	ready    bool
	balance  decimal.Decimal
	listings map[int64][]entity.Listing // by gift type id
	byLink   map[string]entity.Listing
}

// NewSimulateSession creates a ready session with the given stars balance.
func NewSimulateSession(startingBalance int64) *SimulateSession {
	return &SimulateSession{
		ready:    true,
		balance:  decimal.NewFromInt(startingBalance),
		listings: make(map[int64][]entity.Listing),
		byLink:   make(map[string]entity.Listing),
	}
}

// Seed adds a listing to the simulated marketplace.
func (s *SimulateSession) Seed(listing entity.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.GiftID] = append(s.listings[listing.GiftID], listing)
	sort.Slice(s.listings[listing.GiftID], func(i, j int) bool {
		return s.listings[listing.GiftID][i].Price < s.listings[listing.GiftID][j].Price
	})
	s.byLink[listing.Link] = listing
}

// SetReady flips the simulated connection state.
func (s *SimulateSession) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

func (s *SimulateSession) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *SimulateSession) Balance(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return decimal.Zero, market.NewPurchaseError(market.FailureSessionInvalid, nil)
	}
	return s.balance, nil
}

func (s *SimulateSession) SearchListings(_ context.Context, giftID int64) (market.ListingCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// copy so the cursor survives concurrent purchases
	items := make([]entity.Listing, len(s.listings[giftID]))
	copy(items, s.listings[giftID])
	return &sliceCursor{items: items}, nil
}

func (s *SimulateSession) Purchase(_ context.Context, link string, to market.Recipient, expectedPrice int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return market.NewPurchaseError(market.FailureSessionInvalid, nil)
	}
	if !to.Valid() {
		return market.NewPurchaseError(market.FailureForbidden, nil)
	}
	listing, ok := s.byLink[link]
	if !ok {
		return market.NewPurchaseError(market.FailureNotFound, nil)
	}
	if listing.Price != expectedPrice {
		return market.NewPurchaseError(market.FailurePriceChanged, nil)
	}
	if s.balance.LessThan(decimal.NewFromInt(listing.Price)) {
		return market.NewPurchaseError(market.FailureForbidden, nil)
	}

	s.balance = s.balance.Sub(decimal.NewFromInt(listing.Price))
	delete(s.byLink, link)
	kept := s.listings[listing.GiftID][:0]
	for _, l := range s.listings[listing.GiftID] {
		if l.Link != link {
			kept = append(kept, l)
		}
	}
	s.listings[listing.GiftID] = kept

	// like the real platform: success returns nothing to verify against
	return nil
}

type sliceCursor struct {
	items []entity.Listing
	pos   int
}

func (c *sliceCursor) Next(ctx context.Context) (entity.Listing, bool, error) {
	if err := ctx.Err(); err != nil {
		return entity.Listing{}, false, err
	}
	if c.pos >= len(c.items) {
		return entity.Listing{}, false, nil
	}
	item := c.items[c.pos]
	c.pos++
	return item, true, nil
}
