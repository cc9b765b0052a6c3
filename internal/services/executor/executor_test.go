package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/balance"
	"github.com/tgstars/giftsniper/internal/services/cache"
	"github.com/tgstars/giftsniper/internal/services/notifier"
)

type buyerStub struct {
	ok     bool
	err    error
	bought []entity.AvailableGift
}

func (b *buyerStub) Buy(_ context.Context, gift entity.AvailableGift, _ market.Recipient) (bool, error) {
	b.bought = append(b.bought, gift)
	return b.ok, b.err
}

type notifierStub struct {
	purchases []notifier.Purchase
	stops     []string
}

func (n *notifierStub) PurchaseCompleted(_ context.Context, p notifier.Purchase) error {
	n.purchases = append(n.purchases, p)
	return nil
}

func (n *notifierStub) HardStop(_ context.Context, cause string) error {
	n.stops = append(n.stops, cause)
	return nil
}

type executorEnv struct {
	exec     *Executor
	store    *config.Store
	listings *cache.Store
	session  *sessionMock
	buyer    *buyerStub
	notify   *notifierStub
}

func newExecutorEnv(t *testing.T, cfg config.Config, session *sessionMock, b *buyerStub) *executorEnv {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "gifts.yaml"))
	require.NoError(t, err)
	require.NoError(t, store.Save(cfg))

	listings := cache.New()
	notify := &notifierStub{}
	oracle := balance.NewOracle(session, store, zap.NewNop())
	exec := New(store, listings, oracle, b, session, notify, zap.NewNop())

	return &executorEnv{
		exec:     exec,
		store:    store,
		listings: listings,
		session:  session,
		buyer:    b,
		notify:   notify,
	}
}

func activeConfig() config.Config {
	return config.Config{
		Active:          true,
		RecipientUserID: 42,
		Targets: []config.Target{
			{GiftID: 5170233102089322756, Name: "Pepe", MaxPrice: 500, Enabled: true},
		},
		Sender: config.Sender{
			APIID:   1,
			APIHash: "h",
			Phone:   "+1",
			Enabled: true,
			Balance: 1000,
		},
	}
}

func cacheCandidate(env *executorEnv, idx int, name string, price int64) {
	env.listings.Put(entity.CacheEntry{
		TargetIndex: idx,
		Listing: &entity.Listing{
			ID:            name,
			GiftID:        5170233102089322756,
			Price:         price,
			Name:          name,
			Link:          "https://t.me/nft/" + name,
			StarsEligible: true,
		},
		UpdatedAt: time.Now(),
		Target:    entity.TargetSnapshot{GiftID: 5170233102089322756, Name: "Pepe", MaxPrice: 500},
	})
}

func (env *executorEnv) activeFlag(t *testing.T) bool {
	t.Helper()
	cfg, err := env.store.Load()
	require.NoError(t, err)
	return cfg.Active
}

func TestRunCycleDeactivated(t *testing.T) {
	cfg := activeConfig()
	cfg.Active = false
	env := newExecutorEnv(t, cfg, &sessionMock{ready: true, balance: 1000}, &buyerStub{})

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleStop, outcome)
	assert.Empty(t, env.notify.stops)
}

func TestRunCycleSessionGoneHardStops(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: false}, &buyerStub{})

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleStop, outcome)
	require.Len(t, env.notify.stops, 1)
	assert.False(t, env.activeFlag(t))
}

func TestRunCycleNoRecipientHardStops(t *testing.T) {
	cfg := activeConfig()
	cfg.RecipientUserID = 0
	cfg.RecipientChannel = ""
	env := newExecutorEnv(t, cfg, &sessionMock{ready: true, balance: 1000}, &buyerStub{})

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleStop, outcome)
	require.Len(t, env.notify.stops, 1)
	assert.False(t, env.activeFlag(t))
}

func TestRunCycleNoEnabledTargetsIdles(t *testing.T) {
	cfg := activeConfig()
	cfg.Targets[0].Enabled = false
	env := newExecutorEnv(t, cfg, &sessionMock{ready: true, balance: 1000}, &buyerStub{})

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleIdle, outcome)
	assert.True(t, env.activeFlag(t))
}

func TestRunCycleEmptyCacheIdles(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: true, balance: 1000}, &buyerStub{})

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleIdle, outcome)
}

func TestRunCycleBuysAtMostOne(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: true, balance: 1000}, &buyerStub{ok: true})
	cacheCandidate(env, 0, "cheap", 100)
	cacheCandidate(env, 1, "pricier", 200)

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cyclePurchased, outcome)

	// cheapest-first, and exactly one buy per cycle
	require.Len(t, env.buyer.bought, 1)
	assert.Equal(t, "cheap", env.buyer.bought[0].Name)
	require.Len(t, env.notify.purchases, 1)
	assert.Equal(t, int64(100), env.notify.purchases[0].Price)
	assert.Equal(t, "user 42", env.notify.purchases[0].Recipient)
}

func TestRunCycleInsufficientFundsHardStops(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: true, balance: 100}, &buyerStub{ok: false})
	cacheCandidate(env, 0, "gift", 150)

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleStop, outcome)
	require.Len(t, env.notify.stops, 1)
	assert.Contains(t, env.notify.stops[0], "★100")
	assert.Contains(t, env.notify.stops[0], "★150")
	assert.False(t, env.activeFlag(t))
}

func TestRunCycleAffordableButUnboughtIdles(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: true, balance: 500}, &buyerStub{ok: false})
	cacheCandidate(env, 0, "gift", 150)

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cycleIdle, outcome)
	assert.Empty(t, env.notify.stops)
	assert.True(t, env.activeFlag(t))
}

func TestRunCycleSkipsInvalidCandidate(t *testing.T) {
	env := newExecutorEnv(t, activeConfig(), &sessionMock{ready: true, balance: 1000}, &buyerStub{ok: true})
	env.listings.Put(entity.CacheEntry{
		TargetIndex: 0,
		Listing:     &entity.Listing{Name: "linkless", Price: 50, StarsEligible: true},
		UpdatedAt:   time.Now(),
		Target:      entity.TargetSnapshot{Name: "Pepe", MaxPrice: 500},
	})
	cacheCandidate(env, 1, "valid", 200)

	outcome, err := env.exec.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cyclePurchased, outcome)
	require.Len(t, env.buyer.bought, 1)
	assert.Equal(t, "valid", env.buyer.bought[0].Name)
}

func TestValidateCandidate(t *testing.T) {
	valid := entity.AvailableGift{
		Listing: entity.Listing{
			Name:  "Pepe-1",
			Price: 100,
			Link:  "https://t.me/nft/Pepe-1",
		},
		MaxPrice: 500,
	}
	to := market.Recipient{User: 42}

	tests := []struct {
		name    string
		mutate  func(*entity.AvailableGift, *market.Recipient)
		wantErr bool
	}{
		{name: "valid", mutate: func(*entity.AvailableGift, *market.Recipient) {}},
		{name: "missing link", mutate: func(g *entity.AvailableGift, _ *market.Recipient) {
			g.Link = ""
		}, wantErr: true},
		{name: "wrong link shape", mutate: func(g *entity.AvailableGift, _ *market.Recipient) {
			g.Link = "https://t.me/somebot?start=1"
		}, wantErr: true},
		{name: "missing name", mutate: func(g *entity.AvailableGift, _ *market.Recipient) {
			g.Name = ""
		}, wantErr: true},
		{name: "zero price", mutate: func(g *entity.AvailableGift, _ *market.Recipient) {
			g.Price = 0
		}, wantErr: true},
		{name: "over ceiling", mutate: func(g *entity.AvailableGift, _ *market.Recipient) {
			g.Price = 600
		}, wantErr: true},
		{name: "no recipient", mutate: func(_ *entity.AvailableGift, r *market.Recipient) {
			r.User = 0
		}, wantErr: true},
		{name: "ambiguous recipient", mutate: func(_ *entity.AvailableGift, r *market.Recipient) {
			r.Channel = "both"
		}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gift, recipient := valid, to
			tc.mutate(&gift, &recipient)
			err := validateCandidate(gift, recipient)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
