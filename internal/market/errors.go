package market

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// FailureReason tags a purchase failure so callers can pick a retry policy
// from a table instead of matching on error strings.
type FailureReason int

const (
	// FailureRemote is a generic transient RPC failure, retriable with backoff.
	FailureRemote FailureReason = iota
	// FailureRateLimited means the platform asked us to wait before retrying.
	FailureRateLimited
	// FailureNotFound means the collectible no longer exists or was bought.
	FailureNotFound
	// FailurePriceChanged means the asking price moved since discovery.
	FailurePriceChanged
	// FailureForbidden means the session is not allowed to perform the buy.
	FailureForbidden
	// FailureSessionInvalid means the session key is no longer usable.
	FailureSessionInvalid
)

func (r FailureReason) String() string {
	switch r {
	case FailureRemote:
		return "remote error"
	case FailureRateLimited:
		return "rate limited"
	case FailureNotFound:
		return "not found"
	case FailurePriceChanged:
		return "price changed"
	case FailureForbidden:
		return "forbidden"
	case FailureSessionInvalid:
		return "session invalid"
	default:
		return fmt.Sprintf("failure(%d)", int(r))
	}
}

// PurchaseError is the sole error type returned by Session.Purchase.
type PurchaseError struct {
	Reason FailureReason
	// Wait is the platform-specified delay, set only for FailureRateLimited.
	Wait time.Duration
	Err  error
}

func (e *PurchaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("purchase failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("purchase failed (%s)", e.Reason)
}

func (e *PurchaseError) Unwrap() error { return e.Err }

// NewPurchaseError wraps err with a failure reason.
func NewPurchaseError(reason FailureReason, err error) *PurchaseError {
	return &PurchaseError{Reason: reason, Err: err}
}

// NewRateLimited builds a rate-limit failure carrying the imposed wait.
func NewRateLimited(wait time.Duration) *PurchaseError {
	return &PurchaseError{Reason: FailureRateLimited, Wait: wait}
}

// ClassifyPurchaseError extracts the failure reason from an error chain.
// Errors that are not PurchaseError are treated as generic remote failures.
func ClassifyPurchaseError(err error) *PurchaseError {
	var perr *PurchaseError
	if errors.As(err, &perr) {
		return perr
	}
	return &PurchaseError{Reason: FailureRemote, Err: err}
}
