package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// subscriberBuffer matches the in-memory bus. A full buffer drops messages.
const subscriberBuffer = 128

// SignalBus carries rate updates over Redis pub/sub so watchers in other
// processes see them.
type SignalBus struct {
	c *Client
}

// NewSignalBus returns a bus on c's namespace.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

// Publish sends payload to channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe confirms the subscription before returning. The returned channel
// closes when ctx is cancelled or the connection goes away.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ps := sb.c.rdb.Subscribe(ctx, sb.c.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go sb.forward(ctx, ps, out)
	return out, nil
}

func (sb *SignalBus) forward(ctx context.Context, ps *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer ps.Close()

	in := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			default:
			}
		}
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
