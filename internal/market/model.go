package market

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrOrderUnavailable means the order is gone or another caller won the
	// race out of active.
	ErrOrderUnavailable = errors.New("order no longer available")

	// ErrNotSeller rejects a cancellation by anyone but the order's seller.
	ErrNotSeller = errors.New("only the seller may cancel")

	// ErrSelfTrade rejects a seller buying their own order.
	ErrSelfTrade = errors.New("cannot fulfill own order")

	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
)

// Status of a sell order. An order leaves active exactly once, to either
// completed or cancelled, never both.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// SellOrder is an outstanding offer of escrowed tokens. TokenAmount was
// deducted from the seller exactly once at creation and is released exactly
// once, to the buyer on fulfillment or back to the seller on cancellation.
type SellOrder struct {
	ID            string
	SellerID      string
	TokenAmount   int64
	PricePerToken int64
	Status        Status
	BuyerID       string
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// Repository persists the order book. The two transitions out of active are
// single conditional writes; a racing fulfill and cancel produce exactly one
// winner and one ErrOrderUnavailable.
type Repository interface {
	Create(ctx context.Context, order SellOrder) error
	Get(ctx context.Context, id string) (SellOrder, error)
	ListOpen(ctx context.Context, limit int) ([]SellOrder, error)

	// Complete flips active → completed recording the buyer.
	Complete(ctx context.Context, id, buyerID string) error

	// Cancel flips active → cancelled if callerID is the seller.
	Cancel(ctx context.Context, id, callerID string) error
}
