package events

import (
	"context"
	"time"
)

// Event kinds emitted by the core for live UI updates.
const (
	KindBalanceChanged = "balance_changed"
	KindOrderCreated   = "order_created"
	KindOrderFulfilled = "order_fulfilled"
	KindOrderCancelled = "order_cancelled"
	KindPriceAdjusted  = "price_adjusted"
)

// Event is one observable state change. The UI layer consumes these over
// whatever transport the publisher implements; the core never depends on a
// specific one.
type Event struct {
	Kind      string    `json:"kind"`
	AccountID string    `json:"account_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to subscribers. Delivery is best-effort; money
// movement never depends on it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
