package policy

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func defaults() Values {
	return Values{
		TokenPrice:      10,
		SellFeePct:      5,
		MarketFeePct:    2,
		PriceAdjustPct:  1,
		VolumeThreshold: 100_000,
		MinWithdrawal:   500,
		MinDeposit:      100,
	}
}

func newRedisSource(t *testing.T) (*RedisSource, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src, err := NewRedisSource(context.Background(), client, defaults())
	if err != nil {
		t.Fatalf("new redis source: %v", err)
	}
	return src, client, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisSourceSeedsDefaults(t *testing.T) {
	src, _, cleanup := newRedisSource(t)
	defer cleanup()

	got, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != defaults() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestRedisSourceUpdate(t *testing.T) {
	src, _, cleanup := newRedisSource(t)
	defer cleanup()
	ctx := context.Background()

	next := defaults()
	next.TokenPrice = 12
	next.MarketFeePct = 3.5
	if err := src.Update(ctx, next); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := src.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.TokenPrice != 12 || got.MarketFeePct != 3.5 {
		t.Fatalf("update not visible: %+v", got)
	}
}

func TestRedisSourceRejectsInvalidValues(t *testing.T) {
	src, _, cleanup := newRedisSource(t)
	defer cleanup()

	bad := defaults()
	bad.TokenPrice = 0
	if err := src.Update(context.Background(), bad); !errors.Is(err, ErrPolicyUnavailable) {
		t.Fatalf("expected ErrPolicyUnavailable got %v", err)
	}
}

func TestRedisSourceAdjustPrice(t *testing.T) {
	src, _, cleanup := newRedisSource(t)
	defer cleanup()
	ctx := context.Background()

	seed := defaults()
	seed.TokenPrice = 1000
	if err := src.Update(ctx, seed); err != nil {
		t.Fatalf("update: %v", err)
	}

	newPrice, err := src.AdjustPrice(ctx, 1) // +1% of 1000
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if newPrice != 1010 {
		t.Fatalf("expected 1010 got %d", newPrice)
	}

	got, _ := src.Current(ctx)
	if got.TokenPrice != 1010 {
		t.Fatalf("adjusted price not stored: %d", got.TokenPrice)
	}
}

func TestAdjustPriceNeverDropsBelowOne(t *testing.T) {
	src := NewStaticSource(Values{TokenPrice: 1, SellFeePct: 1, MarketFeePct: 1, VolumeThreshold: 10})

	got, err := src.AdjustPrice(context.Background(), -99)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got < 1 {
		t.Fatalf("price fell to %d", got)
	}
}

func TestFeeRoundsDown(t *testing.T) {
	cases := []struct {
		amount int64
		pct    float64
		want   int64
	}{
		{100, 2, 2},
		{99, 2, 1},   // 1.98 rounds down
		{100, 0, 0},
		{1, 5, 0},    // 0.05 rounds down
		{1000, 5, 50},
	}
	for _, tc := range cases {
		if got := Fee(tc.amount, tc.pct); got != tc.want {
			t.Fatalf("Fee(%d, %v) = %d, want %d", tc.amount, tc.pct, got, tc.want)
		}
	}
}
