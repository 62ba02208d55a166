package balance

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when an update callback aborts because the
	// account lacks available balance for the requested change.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrentConflict is returned after the bounded number of
	// optimistic-write retries is exhausted.
	ErrConcurrentConflict = errors.New("concurrent balance conflict")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("balance store unavailable")

	// ErrAccountUnknown occurs when the (account, currency) counter does not exist.
	ErrAccountUnknown = errors.New("account unknown")
)

// Currency identifies one of the two per-account counters.
type Currency string

const (
	// PKR is the fiat wallet, denominated in paisa.
	PKR Currency = "PKR"
	// Token is the platform's fungible game token.
	Token Currency = "TOKEN"
)

// maxAttempts bounds the optimistic retry loop before surfacing ErrConcurrentConflict.
const maxAttempts = 5

// UpdateFn computes the next value of a counter from its current value.
// Returning an error aborts the update with no mutation.
type UpdateFn func(current int64) (int64, error)

// Store is the only source of truth for balance changes. Each AtomicUpdate is
// linearizable for its single (account, currency) counter; no cross-key
// atomicity is offered and callers must not assume any.
type Store interface {
	// EnsureAccount creates zeroed counters for both currencies if absent.
	EnsureAccount(ctx context.Context, accountID string) error

	// Balance reads the current committed value of one counter.
	Balance(ctx context.Context, accountID string, currency Currency) (int64, error)

	// AtomicUpdate re-reads the counter, applies fn, and writes back only if
	// no intervening write occurred. Conflicts are retried internally up to
	// maxAttempts. Returns the committed value.
	AtomicUpdate(ctx context.Context, accountID string, currency Currency, fn UpdateFn) (int64, error)
}

// Debit returns an UpdateFn that subtracts amount, aborting with
// ErrInsufficientFunds if the counter would go negative.
func Debit(amount int64) UpdateFn {
	return func(current int64) (int64, error) {
		if current < amount {
			return 0, ErrInsufficientFunds
		}
		return current - amount, nil
	}
}

// Credit returns an UpdateFn that adds amount.
func Credit(amount int64) UpdateFn {
	return func(current int64) (int64, error) {
		return current + amount, nil
	}
}
