// Package market defines the boundary to the delegated account session: the
// operations the engine consumes from the marketplace, the recipient shape,
// and the typed failure taxonomy of the purchase call.
//
// The concrete transport (account sign-in, connection lifecycle) is owned by
// the surrounding application; the engine only ever sees this interface.
package market

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tgstars/giftsniper/internal/entity"
)

// collectibleLinkPrefix is the only deep-link shape the purchase call accepts.
const collectibleLinkPrefix = "https://t.me/nft/"

// Session is the delegated account used to search and buy gifts.
// A single session must never have more than one purchase in flight.
type Session interface {
	// SearchListings returns a cursor over resale listings of the given gift
	// type, ordered ascending by price. The cursor is restartable per call;
	// callers typically take only the first eligible element.
	SearchListings(ctx context.Context, giftID int64) (ListingCursor, error)

	// Purchase buys the collectible behind the deep link for the recipient,
	// paying expectedPrice stars. The returned error, when non-nil, is a
	// *PurchaseError; a nil error is only an acknowledgment, as the platform
	// does not reliably signal success, so callers must verify by observing
	// balance movement.
	Purchase(ctx context.Context, link string, to Recipient, expectedPrice int64) error

	// Balance returns the authoritative stars balance of the session account.
	Balance(ctx context.Context) (decimal.Decimal, error)

	// IsReady reports whether the delegated account connection is live and
	// authorized.
	IsReady() bool
}

// ListingCursor walks a price-ascending listing sequence.
type ListingCursor interface {
	// Next returns the next listing. ok is false when the sequence is
	// exhausted; err is set on transport failures.
	Next(ctx context.Context) (listing entity.Listing, ok bool, err error)
}

// Recipient is the configured gift destination: exactly one of User or
// Channel must be set.
type Recipient struct {
	// User is the recipient user id, 0 when unset.
	User int64
	// Channel is the recipient channel username, empty when unset.
	Channel string
}

// Valid reports whether exactly one destination is configured.
func (r Recipient) Valid() bool {
	return (r.User != 0) != (r.Channel != "")
}

// String renders the recipient for logs and operator notifications.
func (r Recipient) String() string {
	if r.User != 0 {
		return "user " + strconv.FormatInt(r.User, 10)
	}
	if r.Channel != "" {
		return "@" + strings.TrimPrefix(r.Channel, "@")
	}
	return "unset"
}

// ValidCollectibleLink reports whether the deep link has the collectible
// shape the purchase call accepts.
func ValidCollectibleLink(link string) bool {
	return strings.HasPrefix(link, collectibleLinkPrefix) &&
		len(link) > len(collectibleLinkPrefix)
}
