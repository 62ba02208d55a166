package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/logging"
	"github.com/paisa-play/paisa_play/internal/policy"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

const adminID = "house"

type fixture struct {
	svc    *Service
	store  balance.Store
	orders Repository
	econ   *economy.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOrders(t, NewMemoryRepository())
}

func newFixtureWithOrders(t *testing.T, orders Repository) *fixture {
	t.Helper()
	store := balance.NewMemoryStore()
	pol := policy.NewStaticSource(policy.Values{
		TokenPrice:      10,
		SellFeePct:      5,
		MarketFeePct:    2, // 2% of the trade total
		PriceAdjustPct:  1,
		VolumeThreshold: 100_000,
	})
	econ := economy.NewService(economy.NewMemoryRepository(), pol, logging.Discard())
	store.EnsureAccount(context.Background(), adminID)

	svc := NewService(orders, store, ledger.NewMemoryRepository(),
		econ, pol, nil, nil, logging.Discard(), adminID)
	return &fixture{svc: svc, store: store, orders: orders, econ: econ}
}

func (f *fixture) seed(t *testing.T, accountID string, pkr, tokens int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.EnsureAccount(ctx, accountID); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if pkr > 0 {
		f.store.AtomicUpdate(ctx, accountID, balance.PKR, balance.Credit(pkr))
	}
	if tokens > 0 {
		f.store.AtomicUpdate(ctx, accountID, balance.Token, balance.Credit(tokens))
	}
}

func (f *fixture) bal(t *testing.T, accountID string, c balance.Currency) int64 {
	t.Helper()
	v, err := f.store.Balance(context.Background(), accountID, c)
	if err != nil {
		t.Fatalf("balance %s/%s: %v", accountID, c, err)
	}
	return v
}

func TestCreateOrderEscrowsTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "seller", 0, 100)

	order, err := f.svc.CreateOrder(ctx, "seller", 50, 2)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != StatusActive {
		t.Fatalf("expected active got %s", order.Status)
	}
	if got := f.bal(t, "seller", balance.Token); got != 50 {
		t.Fatalf("escrow should leave 50 tokens, got %d", got)
	}

	open, err := f.svc.ListOpenOrders(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != order.ID {
		t.Fatalf("expected the new order listed, got %+v", open)
	}
}

func TestCreateOrderInsufficientTokens(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "seller", 0, 10)

	if _, err := f.svc.CreateOrder(context.Background(), "seller", 50, 2); !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds got %v", err)
	}
	if got := f.bal(t, "seller", balance.Token); got != 10 {
		t.Fatalf("failed order mutated tokens: %d", got)
	}
}

func TestFulfillOrderMovesEveryLeg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "seller", 0, 100)
	f.seed(t, "buyer", 200, 0)

	order, err := f.svc.CreateOrder(ctx, "seller", 50, 2) // total 100, fee 2, net 98
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.FulfillOrder(ctx, order.ID, "buyer")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if got.Status != StatusCompleted || got.BuyerID != "buyer" {
		t.Fatalf("unexpected order %+v", got)
	}

	if v := f.bal(t, "buyer", balance.PKR); v != 100 {
		t.Fatalf("buyer PKR expected 100 got %d", v)
	}
	if v := f.bal(t, "buyer", balance.Token); v != 50 {
		t.Fatalf("buyer tokens expected 50 got %d", v)
	}
	if v := f.bal(t, "seller", balance.PKR); v != 98 {
		t.Fatalf("seller PKR expected 98 got %d", v)
	}
	if v := f.bal(t, "seller", balance.Token); v != 50 {
		t.Fatalf("seller tokens expected 50 got %d", v)
	}
	if v := f.bal(t, adminID, balance.PKR); v != 2 {
		t.Fatalf("admin fee expected 2 got %d", v)
	}

	// P2P trades report volume but never move circulating supply.
	agg, _ := f.econ.Snapshot(ctx)
	if agg.CirculatingSupply != 0 {
		t.Fatalf("supply must be untouched, got %d", agg.CirculatingSupply)
	}
	if agg.VolumeSinceAdjustment != 100 {
		t.Fatalf("volume expected 100 got %d", agg.VolumeSinceAdjustment)
	}
}

func TestFulfillOwnOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "seller", 1000, 100)

	order, _ := f.svc.CreateOrder(ctx, "seller", 10, 1)
	if _, err := f.svc.FulfillOrder(ctx, order.ID, "seller"); !errors.Is(err, ErrSelfTrade) {
		t.Fatalf("expected ErrSelfTrade got %v", err)
	}
}

func TestFulfillUnderfundedBuyerLeavesOrderActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "seller", 0, 100)
	f.seed(t, "buyer", 10, 0)

	order, _ := f.svc.CreateOrder(ctx, "seller", 50, 2) // needs 100
	if _, err := f.svc.FulfillOrder(ctx, order.ID, "buyer"); !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds got %v", err)
	}

	got, _ := f.svc.Get(ctx, order.ID)
	if got.Status != StatusActive {
		t.Fatalf("order must stay active, got %s", got.Status)
	}
}

func TestCancelOrderReturnsEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "seller", 0, 100)

	order, _ := f.svc.CreateOrder(ctx, "seller", 40, 3)

	if _, err := f.svc.CancelOrder(ctx, order.ID, "intruder"); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("expected ErrNotSeller got %v", err)
	}

	got, err := f.svc.CancelOrder(ctx, order.ID, "seller")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled got %s", got.Status)
	}
	if v := f.bal(t, "seller", balance.Token); v != 100 {
		t.Fatalf("escrow not returned, tokens %d", v)
	}

	// The order left active already; a second cancel must not double-refund.
	if _, err := f.svc.CancelOrder(ctx, order.ID, "seller"); !errors.Is(err, ErrOrderUnavailable) {
		t.Fatalf("expected ErrOrderUnavailable got %v", err)
	}
	if v := f.bal(t, "seller", balance.Token); v != 100 {
		t.Fatalf("double cancel changed tokens to %d", v)
	}
}

// A racing fulfill and cancel on one order must produce exactly one winner;
// the escrowed tokens are released exactly once.
func TestRacingFulfillAndCancelOneWinner(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		f.seed(t, "seller", 0, 50)
		f.seed(t, "buyer", 1000, 0)

		order, err := f.svc.CreateOrder(ctx, "seller", 50, 2)
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		var wg sync.WaitGroup
		var fulfillErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, fulfillErr = f.svc.FulfillOrder(ctx, order.ID, "buyer")
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.CancelOrder(ctx, order.ID, "seller")
		}()
		wg.Wait()

		if (fulfillErr == nil) == (cancelErr == nil) {
			t.Fatalf("expected exactly one winner, fulfill=%v cancel=%v", fulfillErr, cancelErr)
		}

		sellerTokens := f.bal(t, "seller", balance.Token)
		buyerTokens := f.bal(t, "buyer", balance.Token)
		if sellerTokens+buyerTokens != 50 {
			t.Fatalf("escrow released %d times: seller=%d buyer=%d",
				(sellerTokens+buyerTokens)/50, sellerTokens, buyerTokens)
		}
		if fulfillErr == nil && buyerTokens != 50 {
			t.Fatalf("fulfill won but buyer holds %d", buyerTokens)
		}
		if cancelErr == nil && sellerTokens != 50 {
			t.Fatalf("cancel won but seller holds %d", sellerTokens)
		}
	}
}

func TestFulfillMissingOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.FulfillOrder(context.Background(), "missing", "buyer"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestInvalidOrderParameters(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "seller", 0, 100)
	ctx := context.Background()

	if _, err := f.svc.CreateOrder(ctx, "seller", 0, 5); !errors.Is(err, transfer.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount got %v", err)
	}
	if _, err := f.svc.CreateOrder(ctx, "seller", 5, -1); !errors.Is(err, transfer.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount got %v", err)
	}
}

// An order whose total overflows int64 would pass the underfunded-buyer
// check with a negative total and pay the seller a negative net. Creation
// rejects it before any escrow moves.
func TestCreateOrderRejectsOverflowingTotal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "seller", 0, 100)

	huge := int64(1) << 40
	if _, err := f.svc.CreateOrder(context.Background(), "seller", huge, huge); !errors.Is(err, transfer.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount got %v", err)
	}
	if got := f.bal(t, "seller", balance.Token); got != 100 {
		t.Fatalf("rejected order mutated tokens: %d", got)
	}
}

// Orders written before total validation existed could still carry an
// overflowing product; fulfillment re-checks before the status flip.
func TestFulfillOrderRejectsOverflowingTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "buyer", 1000, 0)

	huge := int64(1) << 40
	order := SellOrder{
		ID:            "o-huge",
		SellerID:      "seller",
		TokenAmount:   huge,
		PricePerToken: huge,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	if err := f.orders.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.FulfillOrder(ctx, "o-huge", "buyer"); !errors.Is(err, transfer.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount got %v", err)
	}
	got, _ := f.svc.Get(ctx, "o-huge")
	if got.Status != StatusActive {
		t.Fatalf("order must stay active, got %s", got.Status)
	}
	if v := f.bal(t, "buyer", balance.PKR); v != 1000 {
		t.Fatalf("buyer charged on rejected order, PKR %d", v)
	}
}

// unreadableOrders can be switched to fail reads, simulating the order book
// going away mid-cancellation.
type unreadableOrders struct {
	Repository
	fail bool
}

func (u *unreadableOrders) Get(ctx context.Context, id string) (SellOrder, error) {
	if u.fail {
		return SellOrder{}, errors.New("order book down")
	}
	return u.Repository.Get(ctx, id)
}

// The escrowed amount is read before the status flip: if the read fails the
// order stays active and cancellable instead of being terminally cancelled
// with the escrow stranded.
func TestCancelOrderKeepsOrderActiveWhenReadFails(t *testing.T) {
	repo := &unreadableOrders{Repository: NewMemoryRepository()}
	f := newFixtureWithOrders(t, repo)
	ctx := context.Background()
	f.seed(t, "seller", 0, 100)

	order, err := f.svc.CreateOrder(ctx, "seller", 40, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	repo.fail = true
	if _, err := f.svc.CancelOrder(ctx, order.ID, "seller"); err == nil {
		t.Fatal("expected error when the order cannot be read")
	}
	repo.fail = false

	got, err := f.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("failed cancel consumed the order, status %s", got.Status)
	}
	if v := f.bal(t, "seller", balance.Token); v != 60 {
		t.Fatalf("escrow changed on failed cancel, tokens %d", v)
	}

	// The order is still live; a retry succeeds and returns the escrow once.
	if _, err := f.svc.CancelOrder(ctx, order.ID, "seller"); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if v := f.bal(t, "seller", balance.Token); v != 100 {
		t.Fatalf("escrow not returned exactly once, tokens %d", v)
	}
}
