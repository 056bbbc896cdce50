package repository

import (
	"context"
	"sync"
)

type memoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryNotifier fans out signals within one process.
func NewMemoryNotifier() Notifier {
	return &memoryNotifier{subs: make(map[string]map[*memorySubscription]struct{})}
}

type memorySubscription struct {
	*signal
	n     *memoryNotifier
	topic string
}

func (n *memoryNotifier) Publish(_ context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs[topic] {
		sub.notify()
	}
	return nil
}

func (n *memoryNotifier) Subscribe(_ context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{signal: newSignal(), n: n, topic: topic}

	n.mu.Lock()
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[*memorySubscription]struct{})
	}
	n.subs[topic][sub] = struct{}{}
	n.mu.Unlock()
	return sub, nil
}

func (s *memorySubscription) Close() error {
	if !s.stop() {
		return nil
	}
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	delete(s.n.subs[s.topic], s)
	if len(s.n.subs[s.topic]) == 0 {
		delete(s.n.subs, s.topic)
	}
	return nil
}
