package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/events"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/notification"
	"github.com/paisa-play/paisa_play/internal/policy"
)

var (
	// ErrCompensationRequired marks a partial multi-account failure. The
	// payer has been refunded (or flagged for manual reconciliation) and the
	// operation failed; it is never folded into a success.
	ErrCompensationRequired = errors.New("transfer compensated after partial failure")

	// ErrInvalidAmount rejects zero or negative amounts before any mutation.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrHoldUnavailable indicates the withdrawal hold is missing or already settled.
	ErrHoldUnavailable = errors.New("withdrawal hold not settleable")

	// ErrBelowMinimum indicates the amount is under the policy floor.
	ErrBelowMinimum = errors.New("amount below policy minimum")
)

// TotalCost prices tokenAmount at a per-token price. Products that do not
// fit in int64 are rejected: an overflowed cost is negative, and a negative
// debit credits the account.
func TotalCost(tokenAmount, price int64) (int64, error) {
	if tokenAmount <= 0 || price <= 0 {
		return 0, ErrInvalidAmount
	}
	if tokenAmount > math.MaxInt64/price {
		return 0, fmt.Errorf("%w: %d tokens at price %d exceeds the maximum total", ErrInvalidAmount, tokenAmount, price)
	}
	return tokenAmount * price, nil
}

// Service sequences Balance Store updates, Ledger writes and Economy
// aggregate changes for money-movement operations. Each balance update is
// individually atomic; the operation as a whole is not, and partial failures
// are repaired by compensating credits rather than rollback.
type Service struct {
	balances balance.Store
	entries  ledger.Repository
	economy  *economy.Service
	policy   policy.Source
	bus      events.Publisher
	notifier notification.Notifier
	logger   *slog.Logger
	adminID  string
}

// NewService builds the orchestrator and guarantees the admin house account
// exists in the balance store.
func NewService(ctx context.Context, balances balance.Store, entries ledger.Repository,
	econ *economy.Service, policySource policy.Source, bus events.Publisher,
	notifier notification.Notifier, logger *slog.Logger, adminID string) (*Service, error) {
	if adminID == "" {
		return nil, fmt.Errorf("admin account id is required")
	}
	if err := balances.EnsureAccount(ctx, adminID); err != nil {
		return nil, err
	}
	return &Service{
		balances: balances,
		entries:  entries,
		economy:  econ,
		policy:   policySource,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		adminID:  adminID,
	}, nil
}

// AdminAccountID exposes the house account for handlers and the marketplace.
func (s *Service) AdminAccountID() string { return s.adminID }

// Balances is the two-currency view of one account.
type Balances struct {
	PKR   int64
	Token int64
}

// GetBalance reads both counters. The two reads are not a snapshot; callers
// must not assume cross-currency consistency.
func (s *Service) GetBalance(ctx context.Context, accountID string) (Balances, error) {
	pkr, err := s.balances.Balance(ctx, accountID, balance.PKR)
	if err != nil {
		return Balances{}, err
	}
	tokens, err := s.balances.Balance(ctx, accountID, balance.Token)
	if err != nil {
		return Balances{}, err
	}
	return Balances{PKR: pkr, Token: tokens}, nil
}

// ListLedger returns the newest entries for an account.
func (s *Service) ListLedger(ctx context.Context, accountID string, limit int) ([]ledger.Entry, error) {
	return s.entries.ListByAccount(ctx, accountID, limit)
}

// Deposit credits a wallet top-up. The entry is written pending before the
// credit and completed after it, so a credited balance always has a record.
func (s *Service) Deposit(ctx context.Context, accountID string, amount int64) (ledger.Entry, error) {
	if amount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}
	values, err := s.policy.Current(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	if amount < values.MinDeposit {
		return ledger.Entry{}, fmt.Errorf("%w: deposit minimum is %d", ErrBelowMinimum, values.MinDeposit)
	}

	entry := s.newEntry(accountID, ledger.TypeTopUp, amount, balance.PKR, ledger.StatusPending, "wallet top-up", "")
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Credit(amount)); err != nil {
		s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusFailed)
		return ledger.Entry{}, err
	}

	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, accountID, amount, balance.PKR)
	return entry, nil
}

// RequestWithdrawal debits the wallet and parks the funds in an on_hold
// entry awaiting admin settlement. The entry is written pending before the
// debit, so a debited balance always has a record; it becomes settleable
// only once the debit has committed.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID string, amount int64, payoutDetails string) (ledger.Entry, error) {
	if amount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}
	values, err := s.policy.Current(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	if amount < values.MinWithdrawal {
		return ledger.Entry{}, fmt.Errorf("%w: withdrawal minimum is %d", ErrBelowMinimum, values.MinWithdrawal)
	}

	entry := s.newEntry(accountID, ledger.TypeWithdrawal, -amount, balance.PKR, ledger.StatusPending, payoutDetails, "")
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Debit(amount)); err != nil {
		s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusFailed)
		return ledger.Entry{}, err
	}

	// A pending record cannot be settled; the on_hold flip after the debit
	// is what makes it visible to SettleWithdrawal.
	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusOnHold)
	entry.Status = ledger.StatusOnHold
	s.emitBalance(ctx, accountID, -amount, balance.PKR)
	return entry, nil
}

// SettleWithdrawal finalizes a hold. Approval completes it; rejection flips
// it to refunded first (winning any race against a second settle) and only
// then credits the funds back.
func (s *Service) SettleWithdrawal(ctx context.Context, holdID string, approve bool) (ledger.Entry, error) {
	entry, err := s.entries.Get(ctx, holdID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.Type != ledger.TypeWithdrawal || entry.Status != ledger.StatusOnHold {
		return ledger.Entry{}, ErrHoldUnavailable
	}

	if approve {
		if err := s.entries.UpdateStatus(ctx, holdID, ledger.StatusOnHold, ledger.StatusCompleted); err != nil {
			if errors.Is(err, ledger.ErrTerminalStatus) {
				return ledger.Entry{}, ErrHoldUnavailable
			}
			return ledger.Entry{}, err
		}
		entry.Status = ledger.StatusCompleted
		s.notify(ctx, notification.KindWithdrawalSettled, entry.AccountID,
			fmt.Sprintf("Your withdrawal of %d was approved", -entry.Amount))
		return entry, nil
	}

	if err := s.entries.UpdateStatus(ctx, holdID, ledger.StatusOnHold, ledger.StatusRefunded); err != nil {
		if errors.Is(err, ledger.ErrTerminalStatus) {
			return ledger.Entry{}, ErrHoldUnavailable
		}
		return ledger.Entry{}, err
	}

	amount := -entry.Amount
	if _, err := s.balances.AtomicUpdate(ctx, entry.AccountID, balance.PKR, balance.Credit(amount)); err != nil {
		// The hold is already refunded in the ledger; the credit must be
		// replayed by reconciliation, never the status flip.
		s.logger.Error("withdrawal refund credit failed, manual reconciliation required",
			"hold_id", holdID, "account_id", entry.AccountID, "amount", amount, "error", err)
		return ledger.Entry{}, fmt.Errorf("%w: %v", ErrCompensationRequired, err)
	}

	entry.Status = ledger.StatusRefunded
	s.emitBalance(ctx, entry.AccountID, amount, balance.PKR)
	s.notify(ctx, notification.KindWithdrawalSettled, entry.AccountID,
		fmt.Sprintf("Your withdrawal of %d was rejected and refunded", amount))
	return entry, nil
}

// BuyTokens sells tokens from the platform to a user at the policy price:
// PKR moves user to admin, tokens enter circulation.
func (s *Service) BuyTokens(ctx context.Context, accountID string, tokenAmount int64) (ledger.Entry, error) {
	if tokenAmount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}
	values, err := s.policy.Current(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	cost, err := TotalCost(tokenAmount, values.TokenPrice)
	if err != nil {
		return ledger.Entry{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Debit(cost)); err != nil {
		return ledger.Entry{}, err
	}

	entry := s.newEntry(accountID, ledger.TypeTokenPurchase, -cost, balance.PKR, ledger.StatusPending,
		fmt.Sprintf("purchase of %d tokens at %d", tokenAmount, values.TokenPrice), "")
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, s.compensate(ctx, accountID, balance.PKR, cost, "", err)
	}

	if _, err := s.balances.AtomicUpdate(ctx, s.adminID, balance.PKR, balance.Credit(cost)); err != nil {
		return ledger.Entry{}, s.compensate(ctx, accountID, balance.PKR, cost, entry.ID, err)
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.Token, balance.Credit(tokenAmount)); err != nil {
		// Unwind the admin leg best-effort before refunding the payer.
		if _, undoErr := s.balances.AtomicUpdate(ctx, s.adminID, balance.PKR, balance.Debit(cost)); undoErr != nil {
			s.logger.Error("admin leg unwind failed, manual reconciliation required",
				"entry_id", entry.ID, "amount", cost, "error", undoErr)
		}
		return ledger.Entry{}, s.compensate(ctx, accountID, balance.PKR, cost, entry.ID, err)
	}

	s.appendSideEntry(ctx, accountID, ledger.TypeTokenPurchase, tokenAmount, balance.Token,
		fmt.Sprintf("%d tokens credited", tokenAmount), entry.ID)
	s.appendSideEntry(ctx, s.adminID, ledger.TypeTokenPurchase, cost, balance.PKR,
		fmt.Sprintf("token sale to %s", accountID), entry.ID)

	if _, err := s.economy.AdjustSupply(ctx, tokenAmount); err != nil {
		s.logger.Error("supply adjustment failed after token purchase",
			"entry_id", entry.ID, "delta", tokenAmount, "error", err)
	}

	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, accountID, tokenAmount, balance.Token)
	return entry, nil
}

// SellTokens buys tokens back from a user: tokens leave circulation, the
// seller receives PKR net of the sell fee and the fee accrues to the admin
// account.
func (s *Service) SellTokens(ctx context.Context, accountID string, tokenAmount int64) (ledger.Entry, error) {
	if tokenAmount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}
	values, err := s.policy.Current(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	gross, err := TotalCost(tokenAmount, values.TokenPrice)
	if err != nil {
		return ledger.Entry{}, err
	}
	fee := policy.Fee(gross, values.SellFeePct)
	net := gross - fee

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.Token, balance.Debit(tokenAmount)); err != nil {
		return ledger.Entry{}, err
	}

	entry := s.newEntry(accountID, ledger.TypeTokenSalePayout, -tokenAmount, balance.Token, ledger.StatusPending,
		fmt.Sprintf("sale of %d tokens at %d, fee %d", tokenAmount, values.TokenPrice, fee), "")
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, s.compensateTokens(ctx, accountID, tokenAmount, "", err)
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Credit(net)); err != nil {
		return ledger.Entry{}, s.compensateTokens(ctx, accountID, tokenAmount, entry.ID, err)
	}

	if fee > 0 {
		if _, err := s.balances.AtomicUpdate(ctx, s.adminID, balance.PKR, balance.Credit(fee)); err != nil {
			// Seller is fully paid; only the house fee is missing. Flag it
			// for reconciliation instead of failing the seller's sale.
			s.logger.Error("sell fee credit failed, manual reconciliation required",
				"entry_id", entry.ID, "fee", fee, "error", err)
			s.appendFlagged(ctx, s.adminID, ledger.TypeSaleFee, fee, balance.PKR,
				"sell fee missing from admin account", entry.ID)
		} else {
			s.appendSideEntry(ctx, s.adminID, ledger.TypeSaleFee, fee, balance.PKR,
				fmt.Sprintf("sell fee from %s", accountID), entry.ID)
		}
	}

	s.appendSideEntry(ctx, accountID, ledger.TypeTokenSalePayout, net, balance.PKR,
		fmt.Sprintf("payout for %d tokens", tokenAmount), entry.ID)

	if _, err := s.economy.AdjustSupply(ctx, -tokenAmount); err != nil {
		s.logger.Error("supply adjustment failed after token sale",
			"entry_id", entry.ID, "delta", -tokenAmount, "error", err)
	}

	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, accountID, net, balance.PKR)
	return entry, nil
}

// PlaceWager debits a settled wager before the game outcome is known. The
// entry is written pending before the debit, so a debited balance always has
// a record.
func (s *Service) PlaceWager(ctx context.Context, accountID string, amount int64, gameRef string) (ledger.Entry, error) {
	if amount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}

	entry := s.newEntry(accountID, ledger.TypeEntryFee, -amount, balance.PKR, ledger.StatusPending,
		"game wager", gameRef)
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Debit(amount)); err != nil {
		s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusFailed)
		return ledger.Entry{}, err
	}

	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, accountID, -amount, balance.PKR)
	return entry, nil
}

// CreditPayout credits a game prize after the outcome is determined.
func (s *Service) CreditPayout(ctx context.Context, accountID string, amount int64, gameRef string) (ledger.Entry, error) {
	if amount <= 0 {
		return ledger.Entry{}, ErrInvalidAmount
	}

	entry := s.newEntry(accountID, ledger.TypePrize, amount, balance.PKR, ledger.StatusPending,
		"game prize", gameRef)
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}

	if _, err := s.balances.AtomicUpdate(ctx, accountID, balance.PKR, balance.Credit(amount)); err != nil {
		s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusFailed)
		s.logger.Error("prize credit failed", "entry_id", entry.ID, "game", gameRef, "error", err)
		return ledger.Entry{}, err
	}

	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, accountID, amount, balance.PKR)
	s.notify(ctx, notification.KindPrizePaid, accountID, fmt.Sprintf("You won %d", amount))
	return entry, nil
}

// CreditRedeem records and pays out a promotional code claim that the
// redemption registry has already consumed. The claim itself is never rolled
// back: a failed credit leaves a pending entry that RetryRedeemCredit
// replays.
func (s *Service) CreditRedeem(ctx context.Context, accountID, code string, amount int64) (ledger.Entry, error) {
	entry := s.newEntry(accountID, ledger.TypeRedeemCode, amount, balance.PKR, ledger.StatusPending,
		"redeem code claim", code)
	if err := s.entries.Append(ctx, entry); err != nil {
		return ledger.Entry{}, err
	}
	return s.settleRedeem(ctx, entry)
}

// RetryRedeemCredit replays the credit step of a claim whose first credit
// failed, keyed by the pending entry. The claim is not re-run.
func (s *Service) RetryRedeemCredit(ctx context.Context, entryID string) (ledger.Entry, error) {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.Type != ledger.TypeRedeemCode || entry.Status != ledger.StatusPending {
		return ledger.Entry{}, ledger.ErrTerminalStatus
	}
	return s.settleRedeem(ctx, entry)
}

func (s *Service) settleRedeem(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	if _, err := s.balances.AtomicUpdate(ctx, entry.AccountID, balance.PKR, balance.Credit(entry.Amount)); err != nil {
		s.logger.Error("redeem credit failed, claim stays pending",
			"entry_id", entry.ID, "code", entry.RelatedEntityID, "error", err)
		return ledger.Entry{}, err
	}
	s.mustTransition(ctx, entry.ID, ledger.StatusPending, ledger.StatusCompleted)
	entry.Status = ledger.StatusCompleted
	s.emitBalance(ctx, entry.AccountID, entry.Amount, balance.PKR)
	return entry, nil
}

// compensate refunds a committed PKR debit after a later leg failed, marks
// the originating entry failed and appends an explicit compensation record.
// The net-visible outcome to the caller is failure-with-refund.
func (s *Service) compensate(ctx context.Context, accountID string, currency balance.Currency,
	amount int64, origEntryID string, cause error) error {
	if _, err := s.balances.AtomicUpdate(ctx, accountID, currency, balance.Credit(amount)); err != nil {
		s.logger.Error("compensating credit failed, manual reconciliation required",
			"account_id", accountID, "currency", currency, "amount", amount,
			"orig_entry", origEntryID, "cause", cause, "error", err)
		return fmt.Errorf("%w: %v", ErrCompensationRequired, cause)
	}

	if origEntryID != "" {
		s.mustTransition(ctx, origEntryID, ledger.StatusPending, ledger.StatusFailed)
	}
	s.appendSideEntry(ctx, accountID, ledger.TypeCompensation, amount, currency,
		"refund after failed transfer", origEntryID)

	s.logger.Warn("transfer compensated",
		"account_id", accountID, "currency", currency, "amount", amount,
		"orig_entry", origEntryID, "cause", cause)
	s.emitBalance(ctx, accountID, amount, currency)
	return fmt.Errorf("%w: %v", ErrCompensationRequired, cause)
}

func (s *Service) compensateTokens(ctx context.Context, accountID string, tokenAmount int64,
	origEntryID string, cause error) error {
	return s.compensate(ctx, accountID, balance.Token, tokenAmount, origEntryID, cause)
}

func (s *Service) newEntry(accountID string, typ ledger.Type, amount int64, currency balance.Currency,
	status ledger.Status, description, related string) ledger.Entry {
	return ledger.Entry{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		Type:            typ,
		Amount:          amount,
		Currency:        string(currency),
		Status:          status,
		Description:     description,
		RelatedEntityID: related,
		CreatedAt:       time.Now().UTC(),
	}
}

// appendSideEntry records a secondary balance change. Append failures are
// logged, not propagated: the balance change already committed and the
// primary entry carries enough detail to reconstruct it.
func (s *Service) appendSideEntry(ctx context.Context, accountID string, typ ledger.Type,
	amount int64, currency balance.Currency, description, related string) {
	entry := s.newEntry(accountID, typ, amount, currency, ledger.StatusCompleted, description, related)
	if err := s.entries.Append(ctx, entry); err != nil {
		s.logger.Error("ledger side entry append failed",
			"account_id", accountID, "type", typ, "amount", amount, "error", err)
	}
}

func (s *Service) appendFlagged(ctx context.Context, accountID string, typ ledger.Type,
	amount int64, currency balance.Currency, description, related string) {
	entry := s.newEntry(accountID, typ, amount, currency, ledger.StatusFailed, description, related)
	if err := s.entries.Append(ctx, entry); err != nil {
		s.logger.Error("ledger reconciliation entry append failed",
			"account_id", accountID, "type", typ, "amount", amount, "error", err)
	}
}

func (s *Service) mustTransition(ctx context.Context, entryID string, from, to ledger.Status) {
	if err := s.entries.UpdateStatus(ctx, entryID, from, to); err != nil {
		s.logger.Error("ledger status transition failed",
			"entry_id", entryID, "from", from, "to", to, "error", err)
	}
}

func (s *Service) emitBalance(ctx context.Context, accountID string, amount int64, currency balance.Currency) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, events.Event{
		Kind:      events.KindBalanceChanged,
		AccountID: accountID,
		Amount:    amount,
		Currency:  string(currency),
	})
}

func (s *Service) notify(ctx context.Context, kind, accountID, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: accountID, Body: body})
}
