package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func expectSignal(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case <-sub.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal received")
	}
}

func expectQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case <-sub.C():
		t.Fatal("unexpected signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func exerciseNotifier(t *testing.T, n Notifier) {
	ctx := context.Background()
	items, err := n.Subscribe(ctx, GroupItemsTopic("g1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	other, _ := n.Subscribe(ctx, GroupTopic("g1"))
	defer other.Close()

	for i := 0; i < 3; i++ {
		if err := n.Publish(ctx, GroupItemsTopic("g1")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	expectSignal(t, items)
	// Three publishes coalesce into at most a couple of signals, never a backlog.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-items.C():
	default:
	}
	expectQuiet(t, items)
	expectQuiet(t, other)

	if err := items.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := items.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_ = n.Publish(ctx, GroupItemsTopic("g1"))
	expectQuiet(t, items)
}

func TestMemoryNotifier(t *testing.T) {
	exerciseNotifier(t, NewMemoryNotifier())
}

func TestRedisNotifier(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	exerciseNotifier(t, NewRedisNotifier(client, "test:"))
}

func TestRedisStateStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	s := NewRedisStateStore(client, "test:")
	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	_ = s.Delete(ctx, "k")
	if v, err := s.Get(ctx, "k"); err != nil || v != nil {
		t.Fatalf("Get after Delete = %q, %v", v, err)
	}
}
