package account

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Account
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[acct.ID]; exists {
		return errors.New("account exists")
	}
	for _, existing := range r.storage {
		if existing.Phone == acct.Phone {
			return errors.New("phone already registered")
		}
	}
	r.storage[acct.ID] = acct
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.storage[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acct := range r.storage {
		if acct.Phone == phone {
			return acct, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) UpdateDevice(_ context.Context, id, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	acct.DeviceID = deviceID
	r.storage[id] = acct
	return nil
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	acct.TokenVersion = version
	r.storage[id] = acct
	return nil
}

func (r *memoryRepository) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.storage[id]
	if !ok {
		return ErrNotFound
	}
	acct.Status = StatusDeleted
	r.storage[id] = acct
	return nil
}
