package redeem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/logging"
	"github.com/paisa-play/paisa_play/internal/policy"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

func newFixture(t *testing.T) (*Service, balance.Store) {
	t.Helper()
	store := balance.NewMemoryStore()
	pol := policy.NewStaticSource(policy.Values{
		TokenPrice:      10,
		VolumeThreshold: 100_000,
	})
	econ := economy.NewService(economy.NewMemoryRepository(), pol, logging.Discard())
	crediter, err := transfer.NewService(context.Background(), store, ledger.NewMemoryRepository(),
		econ, pol, nil, nil, logging.Discard(), "house")
	if err != nil {
		t.Fatalf("transfer service: %v", err)
	}
	return NewService(NewMemoryRepository(), crediter, logging.Discard()), store
}

func TestClaimCreditsReward(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acc1")

	if _, err := svc.CreateCode(ctx, "WELCOME", 250, 5); err != nil {
		t.Fatalf("create code: %v", err)
	}

	entry, err := svc.Claim(ctx, "acc1", "WELCOME")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if entry.Status != ledger.StatusCompleted || entry.Amount != 250 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	bal, _ := store.Balance(ctx, "acc1", balance.PKR)
	if bal != 250 {
		t.Fatalf("expected 250 got %d", bal)
	}

	code, _ := svc.Get(ctx, "WELCOME")
	if code.TimesUsed != 1 || len(code.ClaimedBy) != 1 {
		t.Fatalf("claim bookkeeping wrong: %+v", code)
	}
}

func TestRepeatClaimRejectedWithoutSecondCredit(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acc1")
	svc.CreateCode(ctx, "WELCOME", 100, 5)

	if _, err := svc.Claim(ctx, "acc1", "WELCOME"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.Claim(ctx, "acc1", "WELCOME"); !errors.Is(err, ErrCodeUnavailable) {
		t.Fatalf("expected ErrCodeUnavailable got %v", err)
	}

	bal, _ := store.Balance(ctx, "acc1", balance.PKR)
	if bal != 100 {
		t.Fatalf("repeat claim credited again: %d", bal)
	}
}

func TestClaimUnknownCode(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	store.EnsureAccount(ctx, "acc1")

	if _, err := svc.Claim(ctx, "acc1", "GHOST"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	svc.CreateCode(ctx, "ONCE", 100, 1)

	if _, err := svc.CreateCode(ctx, "ONCE", 999, 9); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists got %v", err)
	}
	code, _ := svc.Get(ctx, "ONCE")
	if code.Amount != 100 {
		t.Fatalf("duplicate create overwrote code: %+v", code)
	}
}

// Many accounts racing for a nearly exhausted code: successes must equal the
// remaining uses exactly, every success paid exactly once.
func TestConcurrentClaimsHonorMaxUses(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	const claimants = 20
	const maxUses = 5

	svc.CreateCode(ctx, "LIMITED", 100, maxUses)
	for i := 0; i < claimants; i++ {
		store.EnsureAccount(ctx, fmt.Sprintf("acc%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Claim(ctx, id, "LIMITED"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(fmt.Sprintf("acc%d", i))
	}
	wg.Wait()

	if succeeded != maxUses {
		t.Fatalf("expected %d successful claims got %d", maxUses, succeeded)
	}

	code, _ := svc.Get(ctx, "LIMITED")
	if code.TimesUsed != maxUses || len(code.ClaimedBy) != maxUses {
		t.Fatalf("use bookkeeping wrong: used=%d claimants=%d", code.TimesUsed, len(code.ClaimedBy))
	}

	var credited int64
	for i := 0; i < claimants; i++ {
		bal, _ := store.Balance(ctx, fmt.Sprintf("acc%d", i), balance.PKR)
		credited += bal
	}
	if credited != int64(maxUses)*100 {
		t.Fatalf("total credited %d, expected %d", credited, maxUses*100)
	}
}
