// Package poller implements the background sweep that keeps the listing
// cache fresh: for every enabled target it asks the marketplace for the
// cheapest stars-eligible listing under the target's ceiling and records the
// result (or its absence) in the cache.
package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/cache"
	"github.com/tgstars/giftsniper/internal/timeutil"
)

const (
	// idleInterval is the slow cadence used while the system is deactivated:
	// only the config document is polled, waiting for reactivation.
	idleInterval = 5 * time.Second

	// interTargetMin/Max bound the randomized pause between per-target
	// marketplace queries inside one sweep.
	interTargetMin = 2 * time.Second
	interTargetMax = 4 * time.Second

	// sweepJitter widens the configured base interval between sweeps.
	sweepJitter = 15 * time.Second
)

// Poller refreshes the listing cache for all enabled targets.
type Poller struct {
	session market.Session
	cfg     *config.Store
	cache   *cache.Store
	logger  *zap.Logger

	// bounds of the randomized pause between per-target queries; tests
	// shrink them to keep sweeps fast
	interDelayMin time.Duration
	interDelayMax time.Duration
}

// New builds a poller writing into the given cache.
func New(session market.Session, cfg *config.Store, store *cache.Store, logger *zap.Logger) *Poller {
	return &Poller{
		session:       session,
		cfg:           cfg,
		cache:         store,
		logger:        logger,
		interDelayMin: interTargetMin,
		interDelayMax: interTargetMax,
	}
}

// Run loops until ctx is cancelled. The enabled-target list and the
// activation flag are re-read from the config document every cycle rather
// than captured once, so menu-layer edits take effect on the next sweep.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("target poller started")
	defer p.logger.Info("target poller stopped")

	for {
		cfg, err := p.cfg.Load()
		if err != nil {
			p.logger.Error("failed to load config, retrying", zap.Error(err))
			if err := timeutil.Sleep(ctx, idleInterval); err != nil {
				return err
			}
			continue
		}

		if !cfg.Active {
			if err := timeutil.Sleep(ctx, idleInterval); err != nil {
				return err
			}
			continue
		}

		interval := cfg.Sender.UpdateInterval
		targets := cfg.EnabledTargets()
		if len(targets) == 0 {
			p.logger.Debug("no enabled targets to poll")
			if err := timeutil.Sleep(ctx, interval); err != nil {
				return err
			}
			continue
		}

		if err := p.sweep(ctx, targets); err != nil {
			return err
		}

		// randomized inter-sweep delay derived from the configured base
		delay := timeutil.Between(interval, interval+sweepJitter)
		p.logger.Debug("sweep complete", zap.Duration("next_in", delay))
		if err := timeutil.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// sweep updates every enabled target once. A single target's failure is
// logged and skipped; it never aborts the sweep for the others. Only
// cancellation propagates.
func (p *Poller) sweep(ctx context.Context, targets []config.IndexedTarget) error {
	found := 0
	for _, it := range targets {
		listing, err := p.UpdateTarget(ctx, it.Index, it.Target)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("failed to update target",
				zap.Int("target_index", it.Index),
				zap.Int64("gift_id", it.Target.GiftID),
				zap.Error(err))
		} else if listing != nil {
			found++
		}

		if err := timeutil.Sleep(ctx, timeutil.Between(p.interDelayMin, p.interDelayMax)); err != nil {
			return err
		}
	}

	if found > 0 {
		p.logger.Debug("listings found during sweep",
			zap.Int("with_listing", found),
			zap.Int("targets", len(targets)))
	}
	return nil
}

// UpdateTarget refreshes the cache entry for one target. The marketplace
// cursor is price-ascending, so only the first stars-eligible candidate is
// inspected: if it is within the ceiling it is cached and returned, otherwise
// nothing cheaper can exist and absence is cached.
func (p *Poller) UpdateTarget(ctx context.Context, targetIndex int, target config.Target) (*entity.Listing, error) {
	if target.GiftID == 0 {
		return nil, errors.New("target has no gift id")
	}
	if !p.session.IsReady() {
		return nil, errors.New("session is not ready")
	}

	cursor, err := p.session.SearchListings(ctx, target.GiftID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search listings for gift %d", target.GiftID)
	}

	var found *entity.Listing
	checked := 0
	for {
		listing, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "listing cursor failed for gift %d", target.GiftID)
		}
		if !ok {
			break
		}
		checked++

		if !listing.StarsEligible || listing.Price <= 0 {
			continue
		}
		if listing.Price <= target.MaxPrice {
			found = &listing
		} else {
			p.logger.Debug("cheapest listing exceeds ceiling",
				zap.Int64("gift_id", target.GiftID),
				zap.Int64("price", listing.Price),
				zap.Int64("max_price", target.MaxPrice))
		}
		// the cursor is price-ascending: the first eligible candidate decides
		break
	}

	p.cache.Put(entity.CacheEntry{
		TargetIndex: targetIndex,
		Listing:     found,
		UpdatedAt:   time.Now(),
		Target: entity.TargetSnapshot{
			GiftID:   target.GiftID,
			Name:     target.Name,
			MaxPrice: target.MaxPrice,
		},
	})

	if found != nil {
		p.logger.Debug("cached listing",
			zap.Int("target_index", targetIndex),
			zap.String("listing", found.Name),
			zap.Int64("price", found.Price),
			zap.Strings("attributes", found.Attributes),
			zap.Int("checked", checked))
	}
	return found, nil
}
