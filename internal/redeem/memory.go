package redeem

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.Mutex
	codes map[string]Code
}

// NewMemoryRepository constructs an in-memory registry for tests and
// development mode. The claim checks and mutations run under one lock, so
// the check-then-act window the design forbids never opens.
func NewMemoryRepository() Repository {
	return &memoryRepository{codes: make(map[string]Code)}
}

func (r *memoryRepository) Create(_ context.Context, code Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codes[code.Code]; exists {
		return ErrCodeExists
	}
	if code.ClaimedBy == nil {
		code.ClaimedBy = make(map[string]time.Time)
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	r.codes[code.Code] = code
	return nil
}

func (r *memoryRepository) Get(_ context.Context, codeStr string) (Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[codeStr]
	if !ok {
		return Code{}, ErrNotFound
	}
	claimed := make(map[string]time.Time, len(code.ClaimedBy))
	for k, v := range code.ClaimedBy {
		claimed[k] = v
	}
	code.ClaimedBy = claimed
	return code, nil
}

func (r *memoryRepository) Claim(_ context.Context, codeStr, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[codeStr]
	if !ok {
		return 0, ErrNotFound
	}
	if code.TimesUsed >= code.MaxUses {
		return 0, ErrCodeUnavailable
	}
	if _, claimed := code.ClaimedBy[accountID]; claimed {
		return 0, ErrCodeUnavailable
	}
	code.TimesUsed++
	code.ClaimedBy[accountID] = time.Now().UTC()
	r.codes[codeStr] = code
	return code.Amount, nil
}
