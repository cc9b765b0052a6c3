// Package balance is the single point of truth for the sender's stars
// balance. The authoritative value always comes from the live session; the
// value persisted in the config document is a cached fallback used only for
// optimistic pre-checks.
package balance

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal/market"
)

// ErrSessionNotReady is returned by FetchAuthoritative when the delegated
// account connection is down.
var ErrSessionNotReady = errors.New("delegated session is not ready")

// Oracle fetches the account balance and reconciles it into the config
// document.
type Oracle struct {
	session market.Session
	cfg     *config.Store
	logger  *zap.Logger
}

// NewOracle builds a balance oracle over the given session and config store.
func NewOracle(session market.Session, cfg *config.Store, logger *zap.Logger) *Oracle {
	return &Oracle{session: session, cfg: cfg, logger: logger}
}

// FetchAuthoritative queries the live session for the current balance in
// whole stars. It never touches the config document.
func (o *Oracle) FetchAuthoritative(ctx context.Context) (int64, error) {
	if !o.session.IsReady() {
		return 0, ErrSessionNotReady
	}

	raw, err := o.session.Balance(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch stars balance")
	}

	// The platform reports a numeric amount; stars are spent whole, so the
	// fractional part is dropped.
	return raw.IntPart(), nil
}

// Reconcile fetches the authoritative balance and persists it into the config
// document, returning the persisted value. When the sender is not configured,
// the session is down, or the fetch fails, the balance degrades to zero and
// zero is persisted: a stale positive cache must never authorize purchases.
// The returned error covers persistence only.
func (o *Oracle) Reconcile(ctx context.Context) (int64, error) {
	cfg, err := o.cfg.Load()
	if err != nil {
		return 0, err
	}

	value := int64(0)
	switch {
	case !cfg.Sender.Configured():
		o.logger.Debug("sender not configured, persisting zero balance")
	case !o.session.IsReady():
		o.logger.Debug("session not ready, persisting zero balance")
	default:
		fetched, err := o.FetchAuthoritative(ctx)
		if err != nil {
			o.logger.Error("failed to fetch authoritative balance, persisting zero", zap.Error(err))
		} else {
			value = fetched
		}
	}

	old := cfg.Sender.Balance
	if err := o.cfg.Update(func(c *config.Config) { c.Sender.Balance = value }); err != nil {
		return 0, errors.Wrap(err, "failed to persist reconciled balance")
	}
	if old != value {
		o.logger.Info("balance reconciled",
			zap.Int64("old", old),
			zap.Int64("new", value))
	}
	return value, nil
}

// Cached returns the last persisted balance without touching the network.
func (o *Oracle) Cached() int64 {
	cfg, err := o.cfg.Load()
	if err != nil {
		o.logger.Error("failed to read cached balance", zap.Error(err))
		return 0
	}
	return cfg.Sender.Balance
}

// Adjust shifts the persisted balance by delta, flooring at zero, and returns
// the new value. Used for local bookkeeping after a verified purchase when a
// full reconcile is not warranted.
func (o *Oracle) Adjust(delta int64) (int64, error) {
	var updated int64
	err := o.cfg.Update(func(c *config.Config) {
		updated = c.Sender.Balance + delta
		if updated < 0 {
			updated = 0
		}
		c.Sender.Balance = updated
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to adjust cached balance")
	}
	o.logger.Debug("cached balance adjusted", zap.Int64("delta", delta), zap.Int64("balance", updated))
	return updated, nil
}
