package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string // append order, oldest first
}

// NewMemoryRepository constructs a concurrency-safe in-memory ledger for
// tests and development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{entries: make(map[string]Entry)}
}

func (r *memoryRepository) Append(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.UpdatedAt = entry.CreatedAt
	r.entries[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID string, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id string, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != from || e.Status.Terminal() {
		return ErrTerminalStatus
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	r.entries[id] = e
	return nil
}
