package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaderboardBus carries leaderboard snapshots between replicas over Redis
// pub/sub. Publish sends to every replica, the sender included; Run forwards
// received snapshots into the local sink (normally the process Broadcaster).
type LeaderboardBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewLeaderboardBus(client *redis.Client, channel string, logger *zap.Logger) *LeaderboardBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardBus{client: client, channel: channel, logger: logger}
}

func (b *LeaderboardBus) Publish(ctx context.Context, lb domain.Leaderboard) error {
	payload, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}
	return nil
}

// Run subscribes and forwards until ctx is done.
func (b *LeaderboardBus) Run(ctx context.Context, sink app.Notifier) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("leaderboard bus subscribed", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var lb domain.Leaderboard
			if err := json.Unmarshal([]byte(msg.Payload), &lb); err != nil {
				b.logger.Warn("dropping malformed leaderboard message", zap.Error(err))
				continue
			}
			if err := sink.Publish(ctx, lb); err != nil {
				b.logger.Warn("leaderboard fan-out failed", zap.Error(err))
			}
		}
	}
}
