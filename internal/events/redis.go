package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBroker shares events between server instances over Redis pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(ctx context.Context, addr, password, channel string, logger *zap.Logger) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, channel: channel, logger: logger}, nil
}

// Publish sends e to every instance subscribed to the channel.
func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is cancelled.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("skipping malformed event", zap.Error(err))
					continue
				}
				select {
				case out <- e:
				default:
					b.logger.Warn("dropping event for slow subscriber", zap.String("type", e.Type))
				}
			}
		}
	}()
	return out, nil
}

// Close releases the Redis connection pool.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
