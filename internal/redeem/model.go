package redeem

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCodeUnavailable means the code is exhausted or this account already
	// claimed it. The two cases are deliberately indistinguishable to the
	// caller.
	ErrCodeUnavailable = errors.New("code exhausted or already claimed")

	// ErrNotFound indicates no such code exists.
	ErrNotFound = errors.New("code not found")

	// ErrCodeExists rejects minting a duplicate code.
	ErrCodeExists = errors.New("code already exists")
)

// Code is a limited-use promotional credit. TimesUsed always equals the
// size of ClaimedBy and never exceeds MaxUses; an account appears in
// ClaimedBy at most once. TimesUsed is never decremented.
type Code struct {
	Code      string
	Amount    int64
	MaxUses   int
	TimesUsed int
	ClaimedBy map[string]time.Time
	CreatedAt time.Time
}

// Repository persists redeem codes. Claim is the crux: the use-count check,
// the double-claim check and both mutations happen inside one atomic
// conditional write, never as a read-check-write in application code.
type Repository interface {
	Create(ctx context.Context, code Code) error
	Get(ctx context.Context, code string) (Code, error)

	// Claim consumes one use for accountID and returns the credit amount.
	// Exactly one of two racing claims for the last use succeeds; the other
	// gets ErrCodeUnavailable, as does any repeat claim by the same account.
	Claim(ctx context.Context, code, accountID string) (int64, error)
}
