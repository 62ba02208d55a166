package economy

import (
	"context"
)

// Aggregate is the singleton pair of global economic counters.
//
// CirculatingSupply equals the sum of every account's token balance plus all
// tokens escrowed in active sell orders; it moves only on admin buy/sell.
// VolumeSinceAdjustment accumulates traded PKR value and is reset when the
// policy threshold trips.
type Aggregate struct {
	CirculatingSupply     int64
	VolumeSinceAdjustment int64
}

// Repository maintains the two counters with single-row atomic increments.
type Repository interface {
	Snapshot(ctx context.Context) (Aggregate, error)

	// AdjustSupply adds delta (signed) to the circulating supply and returns
	// the new value.
	AdjustSupply(ctx context.Context, delta int64) (int64, error)

	// AddVolume accumulates traded value and returns the running total.
	AddVolume(ctx context.Context, amount int64) (int64, error)

	// ResetVolumeIfAtLeast zeroes the volume counter only if it currently
	// holds at least threshold. Exactly one of several concurrent callers
	// wins; the rest see false.
	ResetVolumeIfAtLeast(ctx context.Context, threshold int64) (bool, error)
}
