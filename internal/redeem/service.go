package redeem

import (
	"context"
	"log/slog"
	"time"

	"github.com/paisa-play/paisa_play/internal/ledger"
)

// Crediter is the orchestrator seam that pays out a consumed claim. A failed
// credit leaves a pending ledger entry replayed through RetryRedeemCredit;
// the claim itself is never re-run.
type Crediter interface {
	CreditRedeem(ctx context.Context, accountID, code string, amount int64) (ledger.Entry, error)
	RetryRedeemCredit(ctx context.Context, entryID string) (ledger.Entry, error)
}

// Service exposes code claiming and minting.
type Service struct {
	repo     Repository
	crediter Crediter
	logger   *slog.Logger
}

// NewService builds a redemption service.
func NewService(repo Repository, crediter Crediter, logger *slog.Logger) *Service {
	return &Service{repo: repo, crediter: crediter, logger: logger}
}

// Claim consumes one use of the code for the account and credits the reward.
// Replaying a successful claim returns ErrCodeUnavailable, never a second
// credit.
func (s *Service) Claim(ctx context.Context, accountID, code string) (ledger.Entry, error) {
	amount, err := s.repo.Claim(ctx, code, accountID)
	if err != nil {
		return ledger.Entry{}, err
	}

	entry, err := s.crediter.CreditRedeem(ctx, accountID, code, amount)
	if err != nil {
		// The code use is consumed; only the credit is outstanding.
		s.logger.Error("redeem credit outstanding after claim",
			"code", code, "account_id", accountID, "amount", amount, "error", err)
		return ledger.Entry{}, err
	}
	return entry, nil
}

// RetryCredit replays the credit step of an interrupted claim.
func (s *Service) RetryCredit(ctx context.Context, entryID string) (ledger.Entry, error) {
	return s.crediter.RetryRedeemCredit(ctx, entryID)
}

// CreateCode mints a new promotional code.
func (s *Service) CreateCode(ctx context.Context, code string, amount int64, maxUses int) (Code, error) {
	c := Code{
		Code:      code,
		Amount:    amount,
		MaxUses:   maxUses,
		ClaimedBy: make(map[string]time.Time),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Code{}, err
	}
	return c, nil
}

// Get returns a code with its claim set, for the admin console.
func (s *Service) Get(ctx context.Context, code string) (Code, error) {
	return s.repo.Get(ctx, code)
}
