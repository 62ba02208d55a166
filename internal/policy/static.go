package policy

import (
	"context"
	"sync"
)

type staticSource struct {
	mu sync.RWMutex
	v  Values
}

// NewStaticSource keeps policy in memory, used in development mode and tests.
func NewStaticSource(v Values) Source {
	return &staticSource{v: v}
}

func (s *staticSource) Current(_ context.Context) (Values, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.v.valid() {
		return Values{}, ErrPolicyUnavailable
	}
	return s.v, nil
}

func (s *staticSource) Update(_ context.Context, v Values) error {
	if !v.valid() {
		return ErrPolicyUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
	return nil
}

func (s *staticSource) AdjustPrice(_ context.Context, pct float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.valid() {
		return 0, ErrPolicyUnavailable
	}
	s.v.TokenPrice = adjusted(s.v.TokenPrice, pct)
	return s.v.TokenPrice, nil
}
