package economy

import (
	"context"
	"sync"
	"testing"

	"github.com/paisa-play/paisa_play/internal/logging"
	"github.com/paisa-play/paisa_play/internal/policy"
)

func newService(threshold int64) (*Service, policy.Source) {
	pol := policy.NewStaticSource(policy.Values{
		TokenPrice:      100,
		SellFeePct:      5,
		MarketFeePct:    2,
		PriceAdjustPct:  10,
		VolumeThreshold: threshold,
	})
	return NewService(NewMemoryRepository(), pol, logging.Discard()), pol
}

func TestSupplyAndVolumeCounters(t *testing.T) {
	svc, _ := newService(1000)
	ctx := context.Background()

	if _, err := svc.AdjustSupply(ctx, 50); err != nil {
		t.Fatalf("adjust supply: %v", err)
	}
	if _, err := svc.AdjustSupply(ctx, -20); err != nil {
		t.Fatalf("adjust supply: %v", err)
	}
	if _, err := svc.AddVolume(ctx, 300); err != nil {
		t.Fatalf("add volume: %v", err)
	}

	agg, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if agg.CirculatingSupply != 30 {
		t.Fatalf("supply expected 30 got %d", agg.CirculatingSupply)
	}
	if agg.VolumeSinceAdjustment != 300 {
		t.Fatalf("volume expected 300 got %d", agg.VolumeSinceAdjustment)
	}
}

func TestCheckAdjustmentBelowThresholdDoesNothing(t *testing.T) {
	svc, pol := newService(1000)
	ctx := context.Background()
	svc.AddVolume(ctx, 999)

	if err := svc.CheckAdjustment(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	vals, _ := pol.Current(ctx)
	if vals.TokenPrice != 100 {
		t.Fatalf("price moved below threshold: %d", vals.TokenPrice)
	}
	agg, _ := svc.Snapshot(ctx)
	if agg.VolumeSinceAdjustment != 999 {
		t.Fatalf("volume consumed below threshold: %d", agg.VolumeSinceAdjustment)
	}
}

func TestCheckAdjustmentMovesPriceAndResetsVolume(t *testing.T) {
	svc, pol := newService(1000)
	ctx := context.Background()
	svc.AddVolume(ctx, 1500)

	if err := svc.CheckAdjustment(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	vals, _ := pol.Current(ctx)
	if vals.TokenPrice != 110 { // +10%
		t.Fatalf("expected 110 got %d", vals.TokenPrice)
	}
	agg, _ := svc.Snapshot(ctx)
	if agg.VolumeSinceAdjustment != 0 {
		t.Fatalf("volume not reset: %d", agg.VolumeSinceAdjustment)
	}
}

// Several concurrent checks over one crossed threshold must adjust exactly once.
func TestConcurrentChecksAdjustOnce(t *testing.T) {
	svc, pol := newService(1000)
	ctx := context.Background()
	svc.AddVolume(ctx, 5000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.CheckAdjustment(ctx)
		}()
	}
	wg.Wait()

	vals, _ := pol.Current(ctx)
	if vals.TokenPrice != 110 {
		t.Fatalf("price adjusted more than once: %d", vals.TokenPrice)
	}
}
