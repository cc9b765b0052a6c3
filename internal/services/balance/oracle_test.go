package balance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/market"
)

type sessionMock struct {
	ready        bool
	balance      decimal.Decimal
	balanceErr   error
	balanceCalls int
}

func (s *sessionMock) SearchListings(context.Context, int64) (market.ListingCursor, error) {
	return nil, errors.New("not implemented")
}

func (s *sessionMock) Purchase(context.Context, string, market.Recipient, int64) error {
	return errors.New("not implemented")
}

func (s *sessionMock) Balance(context.Context) (decimal.Decimal, error) {
	s.balanceCalls++
	return s.balance, s.balanceErr
}

func (s *sessionMock) IsReady() bool { return s.ready }

var _ market.Session = (*sessionMock)(nil)

func newStore(t *testing.T, cfg config.Config) *config.Store {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "gifts.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg))
	return store
}

func configuredSender() config.Sender {
	return config.Sender{APIID: 1, APIHash: "h", Phone: "+1", Enabled: true}
}

func TestFetchAuthoritativeTruncatesFraction(t *testing.T) {
	session := &sessionMock{ready: true, balance: decimal.NewFromFloat(123.9)}
	oracle := NewOracle(session, newStore(t, config.Config{}), zap.NewNop())

	got, err := oracle.FetchAuthoritative(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123), got)
}

func TestFetchAuthoritativeSessionDown(t *testing.T) {
	session := &sessionMock{ready: false}
	oracle := NewOracle(session, newStore(t, config.Config{}), zap.NewNop())

	_, err := oracle.FetchAuthoritative(context.Background())
	require.ErrorIs(t, err, ErrSessionNotReady)
	assert.Zero(t, session.balanceCalls)
}

func TestReconcilePersistsFetchedValue(t *testing.T) {
	session := &sessionMock{ready: true, balance: decimal.NewFromInt(450)}
	store := newStore(t, config.Config{Sender: configuredSender()})
	oracle := NewOracle(session, store, zap.NewNop())

	got, err := oracle.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(450), got)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(450), cfg.Sender.Balance)
}

func TestReconcileDegradesToZeroWhenUnconfigured(t *testing.T) {
	session := &sessionMock{ready: true, balance: decimal.NewFromInt(450)}
	store := newStore(t, config.Config{Sender: config.Sender{Balance: 999}})
	oracle := NewOracle(session, store, zap.NewNop())

	got, err := oracle.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Sender.Balance)
	assert.Zero(t, session.balanceCalls)
}

func TestReconcileDegradesToZeroOnFetchError(t *testing.T) {
	session := &sessionMock{ready: true, balanceErr: errors.New("rpc timeout")}
	sender := configuredSender()
	sender.Balance = 999
	store := newStore(t, config.Config{Sender: sender})
	oracle := NewOracle(session, store, zap.NewNop())

	got, err := oracle.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Sender.Balance)
}

func TestCachedNeverTouchesNetwork(t *testing.T) {
	session := &sessionMock{ready: true, balance: decimal.NewFromInt(450)}
	sender := configuredSender()
	sender.Balance = 300
	store := newStore(t, config.Config{Sender: sender})
	oracle := NewOracle(session, store, zap.NewNop())

	assert.Equal(t, int64(300), oracle.Cached())
	assert.Zero(t, session.balanceCalls)
}

func TestAdjustFloorsAtZero(t *testing.T) {
	sender := configuredSender()
	sender.Balance = 100
	store := newStore(t, config.Config{Sender: sender})
	oracle := NewOracle(&sessionMock{}, store, zap.NewNop())

	got, err := oracle.Adjust(-40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got)

	got, err = oracle.Adjust(-500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Sender.Balance)
}
