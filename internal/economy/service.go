package economy

import (
	"context"
	"log/slog"

	"github.com/paisa-play/paisa_play/internal/policy"
)

// Service maintains the global counters and drives the automatic price
// adjustment. The price-setting decision itself belongs to the policy
// source; the service only detects the threshold crossing.
type Service struct {
	repo   Repository
	policy policy.Source
	logger *slog.Logger
}

// NewService builds an economy service.
func NewService(repo Repository, policySource policy.Source, logger *slog.Logger) *Service {
	return &Service{repo: repo, policy: policySource, logger: logger}
}

// Snapshot returns the current aggregate counters.
func (s *Service) Snapshot(ctx context.Context) (Aggregate, error) {
	return s.repo.Snapshot(ctx)
}

// AdjustSupply records tokens entering (positive) or leaving (negative)
// circulation on admin buy/sell.
func (s *Service) AdjustSupply(ctx context.Context, delta int64) (int64, error) {
	return s.repo.AdjustSupply(ctx, delta)
}

// AddVolume records traded PKR value. P2P trades report volume only, never
// a supply change.
func (s *Service) AddVolume(ctx context.Context, amount int64) (int64, error) {
	return s.repo.AddVolume(ctx, amount)
}

// CheckAdjustment compares the accumulated volume against the policy
// threshold and, on a won atomic reset, signals the policy source to move
// the price. Safe to call concurrently; only the reset winner adjusts.
func (s *Service) CheckAdjustment(ctx context.Context) error {
	values, err := s.policy.Current(ctx)
	if err != nil {
		return err
	}

	won, err := s.repo.ResetVolumeIfAtLeast(ctx, values.VolumeThreshold)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	newPrice, err := s.policy.AdjustPrice(ctx, values.PriceAdjustPct)
	if err != nil {
		// The volume window is consumed but the price did not move; leave a
		// loud trail for the operator.
		s.logger.Error("price adjustment failed after volume reset",
			"threshold", values.VolumeThreshold, "error", err)
		return err
	}

	s.logger.Info("token price adjusted",
		"threshold", values.VolumeThreshold,
		"adjust_pct", values.PriceAdjustPct,
		"new_price", newPrice)
	return nil
}
