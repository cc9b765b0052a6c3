// Package executor implements the purchase loop: each cycle scans the
// listing cache cheapest-first, validates candidates, buys at most one gift
// and verifies the spend through balance movement. Hard-stop conditions
// deactivate the whole engine and notify the operator.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/balance"
	"github.com/tgstars/giftsniper/internal/services/cache"
	"github.com/tgstars/giftsniper/internal/services/notifier"
	"github.com/tgstars/giftsniper/internal/timeutil"
)

// cycleDelay is the fixed pause between scan cycles.
const cycleDelay = time.Second

// cycleOutcome is the terminal state of one executor cycle.
type cycleOutcome int

const (
	// cycleIdle: nothing bought this cycle, keep looping.
	cycleIdle cycleOutcome = iota
	// cyclePurchased: exactly one gift was bought and verified.
	cyclePurchased
	// cycleStop: a hard-stop condition ended the run.
	cycleStop
)

type buyer interface {
	Buy(ctx context.Context, gift entity.AvailableGift, to market.Recipient) (bool, error)
}

// Executor runs purchase cycles over the listing cache.
type Executor struct {
	cfg      *config.Store
	cache    *cache.Store
	oracle   *balance.Oracle
	buyer    buyer
	session  market.Session
	notifier notifier.Notifier
	logger   *zap.Logger
}

// New builds an executor reading candidates from the given cache.
func New(cfg *config.Store, store *cache.Store, oracle *balance.Oracle, b buyer,
	session market.Session, n notifier.Notifier, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		cache:    store,
		oracle:   oracle,
		buyer:    b,
		session:  session,
		notifier: n,
		logger:   logger,
	}
}

// Run loops until cancellation, deactivation or a hard stop. Cycle-level
// failures are logged and the loop continues; only cancellation propagates
// as an error.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("purchase executor started")
	defer e.logger.Info("purchase executor stopped")

	if _, err := e.oracle.Reconcile(ctx); err != nil {
		e.logger.Error("initial balance reconciliation failed", zap.Error(err))
	}

	for {
		outcome, err := e.runCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("cycle failed", zap.Error(err))
		}
		if outcome == cycleStop {
			return nil
		}

		if err := timeutil.Sleep(ctx, cycleDelay); err != nil {
			return err
		}
	}
}

// runCycle is one pass of the Scanning → Validating → Purchasing → Verifying
// state machine. Activation, session liveness and recipient configuration are
// re-checked here every cycle, not only at loop start.
func (e *Executor) runCycle(ctx context.Context) (cycleOutcome, error) {
	cfg, err := e.cfg.Load()
	if err != nil {
		return cycleIdle, err
	}

	if !cfg.Active {
		e.logger.Info("system deactivated, terminating purchase loop")
		return cycleStop, nil
	}

	if !e.session.IsReady() {
		e.hardStop(ctx, "📤 The sender session is no longer active.\nReconfigure the sender to continue.")
		return cycleStop, nil
	}

	to := market.Recipient{User: cfg.RecipientUserID, Channel: cfg.RecipientChannel}
	if to.User == 0 && to.Channel == "" {
		e.hardStop(ctx, "📥 No recipient is configured.\nSet a recipient to continue.")
		return cycleStop, nil
	}

	// targets can be re-enabled from the menu layer at any moment, so an
	// empty list idles instead of stopping
	if len(cfg.EnabledTargets()) == 0 {
		return cycleIdle, nil
	}

	candidates := e.cache.Available()
	if len(candidates) == 0 {
		return cycleIdle, nil
	}

	for _, gift := range candidates {
		if err := validateCandidate(gift, to); err != nil {
			e.logger.Warn("candidate rejected",
				zap.Int("target_index", gift.TargetIndex),
				zap.String("gift", gift.Name),
				zap.Error(err))
			continue
		}

		e.logger.Info("attempting purchase",
			zap.String("target", gift.TargetName),
			zap.String("gift", gift.Name),
			zap.Int64("price", gift.Price),
			zap.Int64("max_price", gift.MaxPrice))

		ok, err := e.buyer.Buy(ctx, gift, to)
		if err != nil {
			if ctx.Err() != nil {
				return cycleIdle, err
			}
			e.logger.Error("purchase attempt errored",
				zap.String("gift", gift.Name),
				zap.Error(err))
			continue
		}
		if !ok {
			e.logger.Error("failed to buy candidate",
				zap.Int("target_index", gift.TargetIndex),
				zap.String("gift", gift.Name))
			continue
		}

		e.announcePurchase(ctx, cfg, gift, to)
		if _, err := e.oracle.Reconcile(ctx); err != nil {
			e.logger.Error("post-purchase reconciliation failed", zap.Error(err))
		}
		// one purchase per cycle: the next cycle rediscovers availability
		return cyclePurchased, nil
	}

	// candidates existed but nothing was bought: make sure we can still
	// afford the cheapest one, otherwise stop for operator intervention
	return e.checkAffordability(ctx, candidates)
}

func (e *Executor) checkAffordability(ctx context.Context, candidates []entity.AvailableGift) (cycleOutcome, error) {
	current, err := e.oracle.Reconcile(ctx)
	if err != nil {
		e.logger.Error("affordability reconciliation failed, falling back to cache", zap.Error(err))
		current = e.oracle.Cached()
	}

	cheapest := candidates[0].Price
	if current >= cheapest {
		// affordable but unbought: instances were likely sold out from under
		// us, the next sweep will find new ones
		return cycleIdle, nil
	}

	e.logger.Error("balance below cheapest candidate",
		zap.Int64("balance", current),
		zap.Int64("cheapest", cheapest))
	e.hardStop(ctx, fmt.Sprintf("💰 Not enough stars.\nBalance: ★%d, cheapest candidate: ★%d.", current, cheapest))
	return cycleStop, nil
}

// hardStop deactivates the engine and tells the operator why before the loop
// exits. Notification delivery is best-effort.
func (e *Executor) hardStop(ctx context.Context, cause string) {
	if err := e.cfg.Update(func(c *config.Config) { c.Active = false }); err != nil {
		e.logger.Error("failed to deactivate after hard stop", zap.Error(err))
	}
	if err := e.notifier.HardStop(ctx, cause); err != nil {
		e.logger.Error("failed to notify hard stop", zap.Error(err))
	}
}

func (e *Executor) announcePurchase(ctx context.Context, cfg config.Config, gift entity.AvailableGift, to market.Recipient) {
	sender := cfg.Sender.FirstName
	if sender == "" {
		sender = "sender"
	}
	err := e.notifier.PurchaseCompleted(ctx, notifier.Purchase{
		TargetName: gift.TargetName,
		GiftName:   gift.Name,
		Price:      gift.Price,
		MaxPrice:   gift.MaxPrice,
		Sender:     sender,
		Recipient:  to.String(),
		Link:       gift.Link,
	})
	if err != nil {
		e.logger.Error("failed to notify purchase", zap.Error(err))
	}
}

// validateCandidate re-checks everything the cache is supposed to guarantee
// before any money moves.
func validateCandidate(gift entity.AvailableGift, to market.Recipient) error {
	if gift.Link == "" {
		return errors.New("listing has no deep link")
	}
	if !market.ValidCollectibleLink(gift.Link) {
		return errors.Errorf("deep link %q is not a collectible link", gift.Link)
	}
	if gift.Name == "" {
		return errors.New("listing has no name")
	}
	if gift.Price <= 0 {
		return errors.Errorf("listing has invalid price %d", gift.Price)
	}
	if gift.Price > gift.MaxPrice {
		return errors.Errorf("price %d exceeds ceiling %d", gift.Price, gift.MaxPrice)
	}
	if !to.Valid() {
		return errors.New("recipient must be exactly one of user or channel")
	}
	return nil
}
