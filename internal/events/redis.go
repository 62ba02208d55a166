package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "events:"

// RedisPublisher pushes events onto Redis pub/sub channels, one channel per
// event kind, for the realtime UI gateway to relay.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisPublisher builds a publisher on top of an existing Redis client.
func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish serializes the event and publishes it; failures are logged and
// swallowed since event delivery is best-effort.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channelPrefix+event.Kind, payload).Err(); err != nil {
		p.logger.Warn("event publish failed", "kind", event.Kind, "error", err)
	}
	return nil
}
