package market

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.Mutex
	orders map[string]SellOrder
}

// NewMemoryRepository constructs an in-memory order book for tests and
// development mode. The status guard is checked under the lock so it stays a
// single atomic conditional write.
func NewMemoryRepository() Repository {
	return &memoryRepository{orders: make(map[string]SellOrder)}
}

func (r *memoryRepository) Create(_ context.Context, order SellOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (SellOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return SellOrder{}, ErrNotFound
	}
	return o, nil
}

func (r *memoryRepository) ListOpen(_ context.Context, limit int) ([]SellOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SellOrder
	for _, o := range r.orders {
		if o.Status == StatusActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) Complete(_ context.Context, id, buyerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != StatusActive {
		return ErrOrderUnavailable
	}
	o.Status = StatusCompleted
	o.BuyerID = buyerID
	o.CompletedAt = time.Now().UTC()
	r.orders[id] = o
	return nil
}

func (r *memoryRepository) Cancel(_ context.Context, id, callerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.SellerID != callerID {
		return ErrNotSeller
	}
	if o.Status != StatusActive {
		return ErrOrderUnavailable
	}
	o.Status = StatusCancelled
	o.CompletedAt = time.Now().UTC()
	r.orders[id] = o
	return nil
}
