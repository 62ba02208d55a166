package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/events"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/notification"
	"github.com/paisa-play/paisa_play/internal/policy"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

// Service runs the peer order book. Every operation is a multi-account
// sequence of single-key atomic steps: the order status flip is the commit
// point, and money legs after it are repaired by flagged reconciliation
// entries rather than by reverting the flip (reverting a completed order
// would reopen it to double-fulfillment).
type Service struct {
	orders   Repository
	balances balance.Store
	entries  ledger.Repository
	economy  *economy.Service
	policy   policy.Source
	bus      events.Publisher
	notifier notification.Notifier
	logger   *slog.Logger
	adminID  string
}

// NewService builds a marketplace service.
func NewService(orders Repository, balances balance.Store, entries ledger.Repository,
	econ *economy.Service, policySource policy.Source, bus events.Publisher,
	notifier notification.Notifier, logger *slog.Logger, adminID string) *Service {
	return &Service{
		orders:   orders,
		balances: balances,
		entries:  entries,
		economy:  econ,
		policy:   policySource,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		adminID:  adminID,
	}
}

// CreateOrder escrows the seller's tokens and posts the offer. The escrow
// debit happens exactly once, before the order record exists; a failed
// insert refunds it.
func (s *Service) CreateOrder(ctx context.Context, sellerID string, tokenAmount, pricePerToken int64) (SellOrder, error) {
	// Rejecting an overflowing total here keeps every active order
	// fulfillable: FulfillOrder prices the same product.
	if _, err := transfer.TotalCost(tokenAmount, pricePerToken); err != nil {
		return SellOrder{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, sellerID, balance.Token, balance.Debit(tokenAmount)); err != nil {
		return SellOrder{}, err
	}

	order := SellOrder{
		ID:            uuid.NewString(),
		SellerID:      sellerID,
		TokenAmount:   tokenAmount,
		PricePerToken: pricePerToken,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if _, refundErr := s.balances.AtomicUpdate(ctx, sellerID, balance.Token, balance.Credit(tokenAmount)); refundErr != nil {
			s.logger.Error("escrow refund failed after order insert, manual reconciliation required",
				"seller_id", sellerID, "tokens", tokenAmount, "error", refundErr)
		}
		return SellOrder{}, fmt.Errorf("%w: %v", transfer.ErrCompensationRequired, err)
	}

	s.appendEntry(ctx, sellerID, ledger.TypeMarketSell, -tokenAmount, balance.Token,
		ledger.StatusCompleted, fmt.Sprintf("%d tokens escrowed at %d each", tokenAmount, pricePerToken), order.ID)

	s.emit(ctx, events.Event{Kind: events.KindOrderCreated, AccountID: sellerID,
		EntityID: order.ID, Amount: tokenAmount, Currency: string(balance.Token)})
	return order, nil
}

// FulfillOrder buys an active order. The status flip is the single winner
// gate; once it commits the operation always runs forward. A PKR leg failing
// after the flip leaves flagged entries for manual reconciliation — the
// escrowed tokens still go to the buyer.
func (s *Service) FulfillOrder(ctx context.Context, orderID, buyerID string) (SellOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return SellOrder{}, err
	}
	if order.SellerID == buyerID {
		return SellOrder{}, ErrSelfTrade
	}
	if order.Status != StatusActive {
		return SellOrder{}, ErrOrderUnavailable
	}

	values, err := s.policy.Current(ctx)
	if err != nil {
		return SellOrder{}, err
	}
	total, err := transfer.TotalCost(order.TokenAmount, order.PricePerToken)
	if err != nil {
		return SellOrder{}, err
	}
	fee := policy.Fee(total, values.MarketFeePct)
	sellerNet := total - fee

	// Fast-fail on an obviously underfunded buyer; the authoritative check
	// is the atomic debit below.
	if current, err := s.balances.Balance(ctx, buyerID, balance.PKR); err != nil {
		return SellOrder{}, err
	} else if current < total {
		return SellOrder{}, balance.ErrInsufficientFunds
	}

	if err := s.orders.Complete(ctx, orderID, buyerID); err != nil {
		return SellOrder{}, err
	}
	order.Status = StatusCompleted
	order.BuyerID = buyerID
	order.CompletedAt = time.Now().UTC()

	paid := true
	if _, err := s.balances.AtomicUpdate(ctx, buyerID, balance.PKR, balance.Debit(total)); err != nil {
		// The order is consumed and is not reverted. Flag the unpaid leg.
		paid = false
		s.logger.Error("buyer debit failed after order completion, manual reconciliation required",
			"order_id", orderID, "buyer_id", buyerID, "total", total, "error", err)
		s.appendEntry(ctx, buyerID, ledger.TypeMarketBuy, -total, balance.PKR,
			ledger.StatusFailed, "buyer payment missing for completed order", orderID)
	} else {
		s.appendEntry(ctx, buyerID, ledger.TypeMarketBuy, -total, balance.PKR,
			ledger.StatusCompleted, fmt.Sprintf("bought %d tokens from %s", order.TokenAmount, order.SellerID), orderID)
	}

	if paid {
		if _, err := s.balances.AtomicUpdate(ctx, order.SellerID, balance.PKR, balance.Credit(sellerNet)); err != nil {
			s.logger.Error("seller payout failed, manual reconciliation required",
				"order_id", orderID, "seller_id", order.SellerID, "net", sellerNet, "error", err)
			s.appendEntry(ctx, order.SellerID, ledger.TypeMarketSell, sellerNet, balance.PKR,
				ledger.StatusFailed, "seller payout missing for completed order", orderID)
		} else {
			s.appendEntry(ctx, order.SellerID, ledger.TypeMarketSell, sellerNet, balance.PKR,
				ledger.StatusCompleted, fmt.Sprintf("payout for order, fee %d", fee), orderID)
		}

		if fee > 0 {
			if _, err := s.balances.AtomicUpdate(ctx, s.adminID, balance.PKR, balance.Credit(fee)); err != nil {
				s.logger.Error("market fee credit failed, manual reconciliation required",
					"order_id", orderID, "fee", fee, "error", err)
				s.appendEntry(ctx, s.adminID, ledger.TypeSaleFee, fee, balance.PKR,
					ledger.StatusFailed, "market fee missing from admin account", orderID)
			} else {
				s.appendEntry(ctx, s.adminID, ledger.TypeSaleFee, fee, balance.PKR,
					ledger.StatusCompleted, fmt.Sprintf("market fee from order %s", orderID), orderID)
			}
		}
	}

	// Escrow release to the buyer happens regardless of the PKR legs; the
	// flagged entries above carry what reconciliation needs.
	if _, err := s.balances.AtomicUpdate(ctx, buyerID, balance.Token, balance.Credit(order.TokenAmount)); err != nil {
		s.logger.Error("escrow release to buyer failed, manual reconciliation required",
			"order_id", orderID, "buyer_id", buyerID, "tokens", order.TokenAmount, "error", err)
		s.appendEntry(ctx, buyerID, ledger.TypeMarketBuy, order.TokenAmount, balance.Token,
			ledger.StatusFailed, "escrowed tokens not released", orderID)
	} else {
		s.appendEntry(ctx, buyerID, ledger.TypeMarketBuy, order.TokenAmount, balance.Token,
			ledger.StatusCompleted, fmt.Sprintf("%d tokens from escrow", order.TokenAmount), orderID)
	}

	// P2P moves existing supply between accounts: volume only.
	if _, err := s.economy.AddVolume(ctx, total); err != nil {
		s.logger.Error("volume update failed", "order_id", orderID, "total", total, "error", err)
	}

	s.emit(ctx, events.Event{Kind: events.KindOrderFulfilled, AccountID: buyerID,
		EntityID: orderID, Amount: order.TokenAmount, Currency: string(balance.Token)})
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindOrderFilled,
			Destination: order.SellerID,
			Body:        fmt.Sprintf("Your order sold for %d (fee %d)", sellerNet, fee),
		})
	}

	if !paid {
		return order, fmt.Errorf("%w: buyer payment leg failed", transfer.ErrCompensationRequired)
	}
	return order, nil
}

// CancelOrder returns escrowed tokens to the seller. Only the seller may
// cancel, and only while the order is still active.
func (s *Service) CancelOrder(ctx context.Context, orderID, sellerID string) (SellOrder, error) {
	// Read the escrowed amount before the status flip: once the order has
	// left active the credit below must always run.
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return SellOrder{}, err
	}
	if err := s.orders.Cancel(ctx, orderID, sellerID); err != nil {
		return SellOrder{}, err
	}
	order.Status = StatusCancelled

	if _, err := s.balances.AtomicUpdate(ctx, sellerID, balance.Token, balance.Credit(order.TokenAmount)); err != nil {
		s.logger.Error("escrow return failed after cancellation, manual reconciliation required",
			"order_id", orderID, "seller_id", sellerID, "tokens", order.TokenAmount, "error", err)
		s.appendEntry(ctx, sellerID, ledger.TypeMarketCancelRefund, order.TokenAmount, balance.Token,
			ledger.StatusFailed, "escrow not returned after cancellation", orderID)
		return SellOrder{}, fmt.Errorf("%w: %v", transfer.ErrCompensationRequired, err)
	}

	s.appendEntry(ctx, sellerID, ledger.TypeMarketCancelRefund, order.TokenAmount, balance.Token,
		ledger.StatusCompleted, "escrow returned after cancellation", orderID)
	s.emit(ctx, events.Event{Kind: events.KindOrderCancelled, AccountID: sellerID,
		EntityID: orderID, Amount: order.TokenAmount, Currency: string(balance.Token)})
	return order, nil
}

// ListOpenOrders returns active orders for display.
func (s *Service) ListOpenOrders(ctx context.Context, limit int) ([]SellOrder, error) {
	return s.orders.ListOpen(ctx, limit)
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (SellOrder, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *Service) appendEntry(ctx context.Context, accountID string, typ ledger.Type, amount int64,
	currency balance.Currency, status ledger.Status, description, orderID string) {
	entry := ledger.Entry{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Type:            typ,
		Amount:          amount,
		Currency:        string(currency),
		Status:          status,
		Description:     description,
		RelatedEntityID: orderID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.entries.Append(ctx, entry); err != nil {
		s.logger.Error("market ledger entry append failed",
			"account_id", accountID, "type", typ, "order_id", orderID, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, event)
}
