package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/balance"
	"github.com/tgstars/giftsniper/internal/services/cache"
	"github.com/tgstars/giftsniper/internal/services/executor"
	"github.com/tgstars/giftsniper/internal/services/notifier"
	"github.com/tgstars/giftsniper/internal/services/poller"
	"github.com/tgstars/giftsniper/internal/supervisor"
)

// GiftBot wires the engine together and is the lifecycle control surface the
// surrounding application (menu, CLI) talks to.
type GiftBot struct {
	cfg        *config.Store
	cache      *cache.Store
	oracle     *balance.Oracle
	buyer      *executor.Buyer
	supervisor *supervisor.Supervisor
	logger     *zap.Logger
}

// NewGiftBot builds the full engine over the given session and notifier.
// journalDir is where purchase intents are persisted.
func NewGiftBot(cfg *config.Store, session market.Session, n notifier.Notifier,
	journalDir string, logger *zap.Logger) (*GiftBot, error) {

	store := cache.New()
	oracle := balance.NewOracle(session, cfg, logger.Named("balance"))

	buyer, err := executor.NewBuyer(session, oracle, journalDir, logger.Named("buyer"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create buyer")
	}

	p := poller.New(session, cfg, store, logger.Named("poller"))
	e := executor.New(cfg, store, oracle, buyer, session, n, logger.Named("executor"))
	sup := supervisor.New(cfg, session, p, e, logger.Named("supervisor"))

	return &GiftBot{
		cfg:        cfg,
		cache:      store,
		oracle:     oracle,
		buyer:      buyer,
		supervisor: sup,
		logger:     logger,
	}, nil
}

// StartWorkers starts the poller/executor pair if the engine is ready.
func (b *GiftBot) StartWorkers(ctx context.Context) bool {
	return b.supervisor.Start(ctx)
}

// StopWorkers cancels and drains the worker pair.
func (b *GiftBot) StopWorkers() {
	b.supervisor.Stop()
}

// AreWorkersRunning reports whether a worker pair is alive.
func (b *GiftBot) AreWorkersRunning() bool {
	return b.supervisor.IsRunning()
}

// AvailableTargetGifts returns the cached candidates cheapest-first, for
// read-only display.
func (b *GiftBot) AvailableTargetGifts() []entity.AvailableGift {
	return b.cache.Available()
}

// Balance returns the cached stars balance without touching the network.
func (b *GiftBot) Balance() int64 {
	return b.oracle.Cached()
}

// activationPollInterval is how often Run re-reads the config document to
// notice activation flips performed by the menu layer or an external editor.
const activationPollInterval = 5 * time.Second

// Run supervises the engine against the persisted active flag: it starts the
// worker pair when the document turns active and stops it when the document
// turns inactive (including the executor's own hard-stop deactivations),
// until ctx is cancelled.
func (b *GiftBot) Run(ctx context.Context) error {
	ticker := time.NewTicker(activationPollInterval)
	defer ticker.Stop()

	defer func() {
		b.StopWorkers()
		if err := b.buyer.Close(); err != nil {
			b.logger.Error("failed to close purchase journal", zap.Error(err))
		}
	}()

	for {
		cfg, err := b.cfg.Load()
		if err != nil {
			b.logger.Error("failed to load config", zap.Error(err))
		} else if cfg.Active && !b.AreWorkersRunning() {
			if !b.StartWorkers(ctx) {
				// the predicate failed: revert the optimistic active flag
				if err := b.cfg.Update(func(c *config.Config) { c.Active = false }); err != nil {
					b.logger.Error("failed to revert active flag", zap.Error(err))
				}
			}
		} else if !cfg.Active && b.AreWorkersRunning() {
			b.logger.Info("system deactivated, stopping workers")
			b.StopWorkers()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
