package executor

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/internal/entity"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/balance"
	"github.com/tgstars/giftsniper/internal/timeutil"
)

const (
	defaultPurchaseAttempts = 3
	// settleDelay gives the platform time to reflect the spend before the
	// verifying balance read.
	settleDelay = time.Second

	retryBackoffMin = 2 * time.Second
	retryBackoffMax = 30 * time.Second
)

// attemptPolicy decides what a failed purchase call does to the current
// attempt sequence.
type attemptPolicy int

const (
	// policyRetryAfterWait sleeps the platform-imposed wait, then retries.
	policyRetryAfterWait attemptPolicy = iota
	// policyRetryBackoff retries after a capped exponential backoff.
	policyRetryBackoff
	// policyAbortAttempt gives up on this candidate immediately.
	policyAbortAttempt
)

// purchasePolicy maps each failure reason to its retry policy. Fatal-to-run
// conditions (invalid session and the like) still abort only this candidate;
// run-level consequences are the executor's call, not the buyer's.
var purchasePolicy = map[market.FailureReason]attemptPolicy{
	market.FailureRateLimited:    policyRetryAfterWait,
	market.FailureRemote:         policyRetryBackoff,
	market.FailureNotFound:       policyAbortAttempt,
	market.FailurePriceChanged:   policyAbortAttempt,
	market.FailureForbidden:      policyAbortAttempt,
	market.FailureSessionInvalid: policyAbortAttempt,
}

// verification classifies an observed balance delta against the expected
// price. The platform's purchase call may acknowledge with nothing even on
// success, so balance movement is the only trusted oracle. Tolerance is ±1
// star; a larger positive delta still counts (the asking price may have
// shifted) but is logged as unexpected. This heuristic is the documented
// contract, not a guaranteed platform behavior.
type verification int

const (
	verifiedNone verification = iota
	verifiedExact
	verifiedUnexpected
)

func classifyDelta(delta, expected int64) verification {
	switch {
	case delta <= 0:
		return verifiedNone
	case delta >= expected-1 && delta <= expected+1:
		return verifiedExact
	default:
		return verifiedUnexpected
	}
}

// Buyer executes a single purchase attempt sequence for one candidate,
// verifying success through before/after balance bracketing.
type Buyer struct {
	session  market.Session
	oracle   *balance.Oracle
	journal  *purchaseJournal
	logger   *zap.Logger
	attempts int
}

// NewBuyer builds a buyer journaling into the given directory.
func NewBuyer(session market.Session, oracle *balance.Oracle, journalDir string, logger *zap.Logger) (*Buyer, error) {
	journal, err := openJournal(journalDir)
	if err != nil {
		return nil, err
	}

	b := &Buyer{
		session:  session,
		oracle:   oracle,
		journal:  journal,
		logger:   logger,
		attempts: defaultPurchaseAttempts,
	}
	b.reportUnresolved()
	return b, nil
}

// reportUnresolved surfaces journal records whose outcome was never
// established (cancelled between purchase call and verification). The
// pre-purchase balance snapshot does not survive a restart, so these cannot
// be re-verified automatically; the operator has to check.
func (b *Buyer) reportUnresolved() {
	for _, intent := range b.journal.Unresolved() {
		b.logger.Warn("unresolved purchase intent from previous run",
			zap.String("intent_id", intent.ID),
			zap.String("link", intent.Link),
			zap.Int64("price", intent.Price),
			zap.Time("time", intent.Time))
	}
}

// Close releases the journal.
func (b *Buyer) Close() error {
	return b.journal.Close()
}

// Buy attempts to purchase the candidate and verify the spend. It returns
// true only for a balance-verified success. A false with nil error means the
// attempt budget ran out or a non-retriable condition aborted the candidate;
// the error is reserved for cancellation and infrastructure failures.
func (b *Buyer) Buy(ctx context.Context, gift entity.AvailableGift, to market.Recipient) (bool, error) {
	// optimistic pre-check against the cached value; the authoritative read
	// below is the one that counts
	if cached := b.oracle.Cached(); cached < gift.Price {
		b.logger.Warn("cached balance below candidate price, skipping purchase",
			zap.Int64("cached", cached),
			zap.Int64("price", gift.Price))
		return false, nil
	}

	before, err := b.oracle.FetchAuthoritative(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to read balance before purchase")
	}
	b.logger.Info("starting purchase",
		zap.String("gift", gift.Name),
		zap.Int64("price", gift.Price),
		zap.String("recipient", to.String()),
		zap.Int64("balance_before", before))

	bo := &backoff.Backoff{Min: retryBackoffMin, Max: retryBackoffMax, Factor: 2, Jitter: true}

	for attempt := 1; attempt <= b.attempts; attempt++ {
		intent, err := b.journal.Prepare(gift.Link, to.String(), gift.Price)
		if err != nil {
			return false, err
		}

		if err := b.session.Purchase(ctx, gift.Link, to, gift.Price); err != nil {
			if ctx.Err() != nil {
				b.journal.MarkUnresolved(intent, ctx.Err())
				return false, ctx.Err()
			}
			perr := market.ClassifyPurchaseError(err)
			b.journal.MarkFailed(intent, perr)

			switch purchasePolicy[perr.Reason] {
			case policyRetryAfterWait:
				b.logger.Warn("rate limited, waiting before retry",
					zap.Duration("wait", perr.Wait),
					zap.Int("attempt", attempt))
				if err := timeutil.Sleep(ctx, perr.Wait); err != nil {
					return false, err
				}
			case policyRetryBackoff:
				wait := bo.Duration()
				b.logger.Warn("remote error, retrying after backoff",
					zap.Duration("wait", wait),
					zap.Int("attempt", attempt),
					zap.Error(perr))
				if err := timeutil.Sleep(ctx, wait); err != nil {
					return false, err
				}
			default:
				b.logger.Error("purchase aborted",
					zap.String("reason", perr.Reason.String()),
					zap.String("link", gift.Link),
					zap.Error(perr))
				return false, nil
			}
			continue
		}

		ok, err := b.verify(ctx, intent, before, gift.Price)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		// balance did not move: the call achieved nothing, retry
	}

	b.logger.Error("purchase attempts exhausted",
		zap.String("link", gift.Link),
		zap.Int("attempts", b.attempts))
	return false, nil
}

// verify brackets the purchase call with the post-spend balance read. If the
// read cannot complete the intent stays unresolved in the journal.
func (b *Buyer) verify(ctx context.Context, intent *purchaseIntent, before, expected int64) (bool, error) {
	if err := timeutil.Sleep(ctx, settleDelay); err != nil {
		b.journal.MarkUnresolved(intent, err)
		return false, err
	}

	after, err := b.oracle.FetchAuthoritative(ctx)
	if err != nil {
		b.journal.MarkUnresolved(intent, err)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		b.logger.Error("failed to read balance after purchase, outcome unresolved", zap.Error(err))
		return false, nil
	}

	delta := before - after
	switch classifyDelta(delta, expected) {
	case verifiedExact:
		b.logger.Info("purchase verified",
			zap.Int64("spent", delta),
			zap.Int64("balance_after", after))
	case verifiedUnexpected:
		b.logger.Warn("purchase verified with unexpected spend",
			zap.Int64("expected", expected),
			zap.Int64("spent", delta),
			zap.Int64("balance_after", after))
	default:
		b.journal.MarkFailed(intent, errors.New("balance unchanged after purchase call"))
		b.logger.Error("balance unchanged, purchase did not go through",
			zap.Int64("balance", after))
		return false, nil
	}

	if err := b.journal.MarkDone(intent); err != nil {
		b.logger.Error("failed to journal purchase completion", zap.Error(err))
	}
	// bring the cached value in line without waiting for the full reconcile
	if _, err := b.oracle.Adjust(-delta); err != nil {
		b.logger.Error("failed to adjust cached balance", zap.Error(err))
	}
	return true, nil
}
