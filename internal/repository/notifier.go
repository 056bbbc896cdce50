package repository

import (
	"context"
	"sync"
)

// Notifier pushes "something changed" signals for a topic. Signals carry no
// payload: subscribers re-read the canonical state.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers coalesced change signals until closed. Several
// publishes between two receives arrive as one signal.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

func GroupTopic(groupID string) string      { return "group:" + groupID }
func GroupItemsTopic(groupID string) string { return "group:" + groupID + ":items" }
func UserTopic(userID string) string        { return "user:" + userID }

// signal is the coalescing channel shared by the Subscription implementations.
type signal struct {
	ch        chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{}, 1), done: make(chan struct{})}
}

func (s *signal) notify() {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *signal) C() <-chan struct{} { return s.ch }

// stop reports true the first time it is called.
func (s *signal) stop() bool {
	stopped := false
	s.closeOnce.Do(func() {
		close(s.done)
		stopped = true
	})
	return stopped
}
