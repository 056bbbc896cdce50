package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type redisNotifier struct {
	client *redis.Client
	prefix string
}

// NewRedisNotifier publishes signals over Redis pub/sub so every server instance sees them.
func NewRedisNotifier(client *redis.Client, prefix string) Notifier {
	return &redisNotifier{client: client, prefix: prefix}
}

func (n *redisNotifier) Publish(ctx context.Context, topic string) error {
	return n.client.Publish(ctx, n.prefix+topic, "1").Err()
}

func (n *redisNotifier) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := n.client.Subscribe(ctx, n.prefix+topic)
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	sub := &redisSubscription{signal: newSignal(), ps: ps}
	go sub.pump(ps.Channel())
	return sub, nil
}

type redisSubscription struct {
	*signal
	ps *redis.PubSub
}

func (s *redisSubscription) pump(msgs <-chan *redis.Message) {
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			s.notify()
		}
	}
}

func (s *redisSubscription) Close() error {
	if !s.stop() {
		return nil
	}
	return s.ps.Close()
}
