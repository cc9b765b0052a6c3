package clients

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
)

const giftID = int64(5170233102089322756)

func seeded(prices ...int64) *SimulateSession {
	s := NewSimulateSession(1000)
	for i, price := range prices {
		name := string(rune('a' + i))
		s.Seed(entity.Listing{
			ID:            name,
			GiftID:        giftID,
			Price:         price,
			Name:          name,
			Link:          "https://t.me/nft/" + name,
			StarsEligible: true,
		})
	}
	return s
}

func drain(t *testing.T, cursor market.ListingCursor) []entity.Listing {
	t.Helper()
	var out []entity.Listing
	for {
		listing, ok, err := cursor.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, listing)
	}
}

func TestSearchListingsPriceAscending(t *testing.T) {
	s := seeded(300, 100, 200)

	cursor, err := s.SearchListings(context.Background(), giftID)
	require.NoError(t, err)

	listings := drain(t, cursor)
	require.Len(t, listings, 3)
	assert.Equal(t, int64(100), listings[0].Price)
	assert.Equal(t, int64(200), listings[1].Price)
	assert.Equal(t, int64(300), listings[2].Price)
}

func TestPurchaseDebitsAndConsumes(t *testing.T) {
	s := seeded(100)

	err := s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{User: 42}, 100)
	require.NoError(t, err)

	got, err := s.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.IntPart())

	cursor, err := s.SearchListings(context.Background(), giftID)
	require.NoError(t, err)
	assert.Empty(t, drain(t, cursor))

	// second buy of the same instance must fail like on the real platform
	err = s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{User: 42}, 100)
	perr := market.ClassifyPurchaseError(err)
	assert.Equal(t, market.FailureNotFound, perr.Reason)
}

func TestPurchasePriceMismatch(t *testing.T) {
	s := seeded(100)

	err := s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{User: 42}, 90)
	require.Error(t, err)

	var perr *market.PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, market.FailurePriceChanged, perr.Reason)
}

func TestPurchaseInvalidRecipient(t *testing.T) {
	s := seeded(100)

	err := s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{}, 100)
	perr := market.ClassifyPurchaseError(err)
	assert.Equal(t, market.FailureForbidden, perr.Reason)
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	s := NewSimulateSession(50)
	s.Seed(entity.Listing{
		ID: "a", GiftID: giftID, Price: 100, Name: "a",
		Link: "https://t.me/nft/a", StarsEligible: true,
	})

	err := s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{User: 42}, 100)
	perr := market.ClassifyPurchaseError(err)
	assert.Equal(t, market.FailureForbidden, perr.Reason)
}

func TestSessionNotReady(t *testing.T) {
	s := seeded(100)
	s.SetReady(false)

	_, err := s.Balance(context.Background())
	require.Error(t, err)

	err = s.Purchase(context.Background(), "https://t.me/nft/a", market.Recipient{User: 42}, 100)
	perr := market.ClassifyPurchaseError(err)
	assert.Equal(t, market.FailureSessionInvalid, perr.Reason)
}
