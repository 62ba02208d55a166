package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("ledger entry not found")

	// ErrTerminalStatus occurs when a transition is attempted on an entry
	// that already reached completed, refunded or failed.
	ErrTerminalStatus = errors.New("ledger entry already settled")
)

// Status of a ledger entry. completed, refunded and failed are terminal and
// immutable; only pending and on_hold entries may transition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a status admits no further transition.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// Type classifies the monetary event an entry records.
type Type string

const (
	TypeTopUp              Type = "top_up"
	TypeWithdrawal         Type = "withdrawal"
	TypeEntryFee           Type = "entry_fee"
	TypePrize              Type = "prize"
	TypeRefund             Type = "refund"
	TypeRedeemCode         Type = "redeem_code"
	TypeTokenPurchase      Type = "token_purchase"
	TypeTokenSalePayout    Type = "token_sale_payout"
	TypeSaleFee            Type = "sale_fee"
	TypeMarketBuy          Type = "market_buy"
	TypeMarketSell         Type = "market_sell"
	TypeMarketCancelRefund Type = "market_cancel_refund"
	TypeCompensation       Type = "compensation"
)

// Entry is one append-only record of a balance change (or a hold against
// one). Amount is signed: negative for debits, positive for credits, in the
// named currency.
type Entry struct {
	ID              string
	AccountID       string
	Type            Type
	Amount          int64
	Currency        string
	Status          Status
	Description     string
	RelatedEntityID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository persists ledger entries. Appends are unconditional; status
// changes go through the guarded UpdateStatus so terminal entries stay
// immutable even under racing writers.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error)

	// UpdateStatus transitions id from `from` to `to`, failing with
	// ErrTerminalStatus when the entry is not currently in `from`.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
