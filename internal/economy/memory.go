package economy

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu  sync.Mutex
	agg Aggregate
}

// NewMemoryRepository constructs an in-memory aggregate for tests and
// development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) Snapshot(_ context.Context) (Aggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agg, nil
}

func (r *memoryRepository) AdjustSupply(_ context.Context, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agg.CirculatingSupply += delta
	return r.agg.CirculatingSupply, nil
}

func (r *memoryRepository) AddVolume(_ context.Context, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agg.VolumeSinceAdjustment += amount
	return r.agg.VolumeSinceAdjustment, nil
}

func (r *memoryRepository) ResetVolumeIfAtLeast(_ context.Context, threshold int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.agg.VolumeSinceAdjustment < threshold {
		return false, nil
	}
	r.agg.VolumeSinceAdjustment = 0
	return true, nil
}
