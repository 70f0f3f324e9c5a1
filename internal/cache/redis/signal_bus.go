package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// streamMaxLen caps durable streams, enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// SignalBus implements domain.SignalBus with Redis Pub/Sub for ephemeral
// fan-out and Redis Streams for durable, ordered delivery. Payloads are
// JSON-encoded on the way in.
type SignalBus struct {
	rdb *redis.Client
}

var _ domain.SignalBus = (*SignalBus)(nil)

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish JSON-encodes the payload and sends it on a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: publish %s: encode: %w", channel, err)
	}
	if err := sb.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Pub/Sub subscription and returns a channel of raw
// payloads plus a stop function. The channel closes when the subscription
// ends, whether through the stop function or context cancellation.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan domain.StreamMessage, func(), error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Wait for the subscription confirmation before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan domain.StreamMessage, 128)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- domain.StreamMessage{Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	stop := func() { _ = pubsub.Close() }
	return out, stop, nil
}

// hasPattern reports whether the channel uses glob-style wildcards, which
// require PSubscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// StreamAppend appends a JSON-encoded payload to a stream with XADD and
// returns the assigned entry ID. The stream is trimmed to an approximate
// maximum length.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("redis: stream append %s: encode: %w", stream, err)
	}
	id, err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return id, nil
}
