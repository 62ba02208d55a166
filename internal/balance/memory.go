package balance

import (
	"context"
	"sync"
)

type versioned struct {
	value   int64
	version uint64
}

type memoryStore struct {
	mu       sync.RWMutex
	counters map[string]*versioned
}

// NewMemoryStore creates a concurrency-safe in-memory store. The optimistic
// read-apply-compare-write cycle mirrors the Postgres row-version backend so
// tests exercise the same retry path production sees.
func NewMemoryStore() Store {
	return &memoryStore{counters: make(map[string]*versioned)}
}

func key(accountID string, currency Currency) string {
	return accountID + ":" + string(currency)
}

func (s *memoryStore) EnsureAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range []Currency{PKR, Token} {
		if _, exists := s.counters[key(accountID, c)]; !exists {
			s.counters[key(accountID, c)] = &versioned{}
		}
	}
	return nil
}

func (s *memoryStore) Balance(_ context.Context, accountID string, currency Currency) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.counters[key(accountID, currency)]
	if !ok {
		return 0, ErrAccountUnknown
	}
	return v.value, nil
}

func (s *memoryStore) AtomicUpdate(_ context.Context, accountID string, currency Currency, fn UpdateFn) (int64, error) {
	k := key(accountID, currency)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		s.mu.RLock()
		v, ok := s.counters[k]
		if !ok {
			s.mu.RUnlock()
			return 0, ErrAccountUnknown
		}
		readValue, readVersion := v.value, v.version
		s.mu.RUnlock()

		next, err := fn(readValue)
		if err != nil {
			return 0, err
		}

		s.mu.Lock()
		if v.version != readVersion {
			s.mu.Unlock()
			continue // lost the race, re-read and retry
		}
		v.value = next
		v.version++
		s.mu.Unlock()
		return next, nil
	}
	return 0, ErrConcurrentConflict
}
