package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const relayBuffer = 256

// RedisRelay mirrors board events between daemons sharing a Redis channel.
// Events published locally are forwarded to Redis; events from other origins
// are re-published on the local bus.
type RedisRelay struct {
	client  *redis.Client
	channel string
	bus     *Bus
}

func NewRedisRelay(client *redis.Client, channel string, bus *Bus) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, bus: bus}
}

// Run blocks until ctx is done, the local subscription is closed or the
// Redis subscription fails.
func (r *RedisRelay) Run(ctx context.Context) error {
	subID, local := r.bus.Subscribe(relayBuffer)
	defer r.bus.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.listen(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return <-errCh
		case err := <-errCh:
			return err
		case ev, ok := <-local:
			if !ok {
				cancel()
				return <-errCh
			}
			if ev.Origin != r.bus.Origin() {
				continue
			}
			if err := r.forward(ctx, ev); err != nil {
				slog.WarnContext(ctx, "failed to relay board event", "event_id", ev.ID, "error", err)
			}
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

// listen re-publishes events from other daemons. go-redis reconnects the
// subscription on its own; the message channel only closes with sub.
func (r *RedisRelay) listen(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.WarnContext(ctx, "unable to parse relayed event", "error", err)
				continue
			}
			if ev.Origin == r.bus.Origin() {
				continue
			}
			r.bus.Publish(&ev)
		}
	}
}
