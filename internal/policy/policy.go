package policy

import (
	"context"
	"errors"

	"github.com/paisa-play/paisa_play/internal/config"
)

// ErrPolicyUnavailable indicates a fee or price the operation needs is not
// configured or could not be read.
var ErrPolicyUnavailable = errors.New("policy unavailable")

// Values is the admin-configured economic policy consumed by the core. The
// core only reads these; the admin console is the sole writer.
type Values struct {
	TokenPrice      int64   `json:"token_price"`       // PKR paisa per token
	SellFeePct      float64 `json:"sell_fee_pct"`      // fee on sell-to-admin, percent
	MarketFeePct    float64 `json:"market_fee_pct"`    // fee on P2P marketplace trades, percent
	PriceAdjustPct  float64 `json:"price_adjust_pct"`  // automatic price move size, percent
	VolumeThreshold int64   `json:"volume_threshold"`  // traded volume that trips a price adjustment
	MinWithdrawal   int64   `json:"min_withdrawal"`
	MinDeposit      int64   `json:"min_deposit"`
}

func (v Values) valid() bool {
	return v.TokenPrice > 0 && v.SellFeePct >= 0 && v.MarketFeePct >= 0 && v.VolumeThreshold > 0
}

// Source supplies policy values to the core and accepts updates from the
// admin console and the automatic price adjuster.
type Source interface {
	Current(ctx context.Context) (Values, error)
	Update(ctx context.Context, v Values) error

	// AdjustPrice moves the stored token price by pct percent (signed),
	// atomically with respect to concurrent reads, and returns the new price.
	AdjustPrice(ctx context.Context, pct float64) (int64, error)
}

// FromConfig builds seed values from environment configuration.
func FromConfig(cfg config.Config) Values {
	return Values{
		TokenPrice:      cfg.TokenPrice,
		SellFeePct:      cfg.SellFeePct,
		MarketFeePct:    cfg.MarketFeePct,
		PriceAdjustPct:  cfg.PriceAdjustPct,
		VolumeThreshold: cfg.VolumeThreshold,
		MinWithdrawal:   cfg.MinWithdrawal,
		MinDeposit:      cfg.MinDeposit,
	}
}

// Fee applies a percentage fee to an amount, rounding down to whole paisa.
func Fee(amount int64, pct float64) int64 {
	if pct <= 0 {
		return 0
	}
	return int64(float64(amount) * pct / 100.0)
}

func adjusted(price int64, pct float64) int64 {
	next := price + int64(float64(price)*pct/100.0)
	if next < 1 {
		next = 1
	}
	return next
}
