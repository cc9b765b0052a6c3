package market

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientValid(t *testing.T) {
	assert.True(t, Recipient{User: 42}.Valid())
	assert.True(t, Recipient{Channel: "mychannel"}.Valid())
	assert.False(t, Recipient{}.Valid())
	assert.False(t, Recipient{User: 42, Channel: "mychannel"}.Valid())
}

func TestRecipientString(t *testing.T) {
	assert.Equal(t, "user 42", Recipient{User: 42}.String())
	assert.Equal(t, "@mychannel", Recipient{Channel: "mychannel"}.String())
	assert.Equal(t, "@mychannel", Recipient{Channel: "@mychannel"}.String())
	assert.Equal(t, "unset", Recipient{}.String())
}

func TestValidCollectibleLink(t *testing.T) {
	assert.True(t, ValidCollectibleLink("https://t.me/nft/SnoopDogg-13392"))
	assert.False(t, ValidCollectibleLink("https://t.me/nft/"))
	assert.False(t, ValidCollectibleLink("https://t.me/somebot?start=1"))
	assert.False(t, ValidCollectibleLink(""))
}

func TestClassifyPurchaseError(t *testing.T) {
	perr := ClassifyPurchaseError(NewPurchaseError(FailureNotFound, nil))
	assert.Equal(t, FailureNotFound, perr.Reason)

	wrapped := errors.Wrap(NewRateLimited(30*time.Second), "attempt 2")
	perr = ClassifyPurchaseError(wrapped)
	require.Equal(t, FailureRateLimited, perr.Reason)
	assert.Equal(t, 30*time.Second, perr.Wait)

	perr = ClassifyPurchaseError(errors.New("connection reset"))
	assert.Equal(t, FailureRemote, perr.Reason)
}

func TestPurchaseErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	perr := NewPurchaseError(FailureForbidden, cause)
	assert.True(t, errors.Is(perr, cause))
	assert.Contains(t, perr.Error(), "forbidden")
}
