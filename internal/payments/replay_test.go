package payments

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryReplayStore struct {
	keys   map[string]time.Duration
	setErr error
}

func newMemoryReplayStore() *memoryReplayStore {
	return &memoryReplayStore{keys: map[string]time.Duration{}}
}

func (m *memoryReplayStore) MarkOnce(_ context.Context, scope, id string, ttl time.Duration) (bool, error) {
	key := scope + ":" + id
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memoryReplayStore) Unmark(_ context.Context, scope, id string) error {
	delete(m.keys, scope+":"+id)
	return nil
}

func TestReplayGuardDetectsRepeat(t *testing.T) {
	store := newMemoryReplayStore()
	guard, err := NewReplayGuard(store, time.Hour, "midtrans")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()
	key := "INV-20240101-123456:settlement:200"

	seen, err := guard.CheckAndMark(ctx, key)
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, key)
	if err != nil || !seen {
		t.Fatalf("replayed delivery: seen=%v err=%v", seen, err)
	}
	if ttl := store.keys["midtrans:"+key]; ttl != time.Hour {
		t.Fatalf("expected ttl of one hour, got %s", ttl)
	}
}

func TestReplayGuardForgetAllowsRetry(t *testing.T) {
	store := newMemoryReplayStore()
	guard, err := NewReplayGuard(store, time.Hour, "midtrans")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()
	key := "INV-20240101-123456:settlement:200"

	if _, err := guard.CheckAndMark(ctx, key); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := guard.Forget(ctx, key); err != nil {
		t.Fatalf("forget: %v", err)
	}
	seen, err := guard.CheckAndMark(ctx, key)
	if err != nil || seen {
		t.Fatalf("expected retry to be processed, seen=%v err=%v", seen, err)
	}
}

func TestReplayGuardValidation(t *testing.T) {
	if _, err := NewReplayGuard(nil, time.Hour, "midtrans"); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewReplayGuard(newMemoryReplayStore(), -time.Second, "midtrans"); err == nil {
		t.Fatal("expected error for negative ttl")
	}
	if _, err := NewReplayGuard(newMemoryReplayStore(), time.Hour, ""); err == nil {
		t.Fatal("expected error for empty scope")
	}

	store := newMemoryReplayStore()
	store.setErr = errors.New("redis down")
	guard, err := NewReplayGuard(store, time.Hour, "midtrans")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), "k"); err == nil {
		t.Fatal("expected store error to surface")
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
