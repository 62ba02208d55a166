package policy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	policyKey       = "policy:config"
	adjustAttempts  = 5
	fieldTokenPrice = "token_price"
)

// RedisSource reads the policy hash the admin console writes. A missing hash
// is seeded from the provided defaults on first use.
type RedisSource struct {
	client   *redis.Client
	defaults Values
}

// NewRedisSource builds a Redis-backed policy source seeded with defaults.
func NewRedisSource(ctx context.Context, client *redis.Client, defaults Values) (*RedisSource, error) {
	s := &RedisSource{client: client, defaults: defaults}
	ok, err := client.Exists(ctx, policyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("probe policy hash: %w", err)
	}
	if ok == 0 {
		if err := s.Update(ctx, defaults); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Current reads the full policy hash.
func (s *RedisSource) Current(ctx context.Context) (Values, error) {
	fields, err := s.client.HGetAll(ctx, policyKey).Result()
	if err != nil || len(fields) == 0 {
		return Values{}, ErrPolicyUnavailable
	}
	v := Values{
		TokenPrice:      intField(fields, fieldTokenPrice),
		SellFeePct:      floatField(fields, "sell_fee_pct"),
		MarketFeePct:    floatField(fields, "market_fee_pct"),
		PriceAdjustPct:  floatField(fields, "price_adjust_pct"),
		VolumeThreshold: intField(fields, "volume_threshold"),
		MinWithdrawal:   intField(fields, "min_withdrawal"),
		MinDeposit:      intField(fields, "min_deposit"),
	}
	if !v.valid() {
		return Values{}, ErrPolicyUnavailable
	}
	return v, nil
}

// Update overwrites the policy hash.
func (s *RedisSource) Update(ctx context.Context, v Values) error {
	if !v.valid() {
		return ErrPolicyUnavailable
	}
	err := s.client.HSet(ctx, policyKey,
		fieldTokenPrice, strconv.FormatInt(v.TokenPrice, 10),
		"sell_fee_pct", strconv.FormatFloat(v.SellFeePct, 'f', -1, 64),
		"market_fee_pct", strconv.FormatFloat(v.MarketFeePct, 'f', -1, 64),
		"price_adjust_pct", strconv.FormatFloat(v.PriceAdjustPct, 'f', -1, 64),
		"volume_threshold", strconv.FormatInt(v.VolumeThreshold, 10),
		"min_withdrawal", strconv.FormatInt(v.MinWithdrawal, 10),
		"min_deposit", strconv.FormatInt(v.MinDeposit, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("write policy hash: %w", err)
	}
	return nil
}

// AdjustPrice moves the stored price by pct percent under an optimistic WATCH
// loop so a concurrent admin update cannot be clobbered.
func (s *RedisSource) AdjustPrice(ctx context.Context, pct float64) (int64, error) {
	var newPrice int64
	update := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, policyKey, fieldTokenPrice).Result()
		if err != nil {
			return ErrPolicyUnavailable
		}
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price <= 0 {
			return ErrPolicyUnavailable
		}
		newPrice = adjusted(price, pct)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, policyKey, fieldTokenPrice, strconv.FormatInt(newPrice, 10))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < adjustAttempts; attempt++ {
		err := s.client.Watch(ctx, update, policyKey)
		if err == nil {
			return newPrice, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return 0, err
	}
	return 0, ErrPolicyUnavailable
}

func intField(fields map[string]string, name string) int64 {
	n, _ := strconv.ParseInt(fields[name], 10, 64)
	return n
}

func floatField(fields map[string]string, name string) float64 {
	f, _ := strconv.ParseFloat(fields[name], 64)
	return f
}
