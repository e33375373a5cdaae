package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artisancrate/billing-engine/pkg/config"
)

// mockCmdable understands only releaseScript for Eval.
type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(m.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestMarkOnceAndUnmark(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	id := "INV-20240101-123456:settlement:200"

	fresh, err := client.MarkOnce(ctx, "midtrans", id, time.Hour)
	if err != nil || !fresh {
		t.Fatalf("first mark: fresh=%v err=%v", fresh, err)
	}
	fresh, err = client.MarkOnce(ctx, "midtrans", id, time.Hour)
	if err != nil || fresh {
		t.Fatalf("second mark should be rejected: fresh=%v err=%v", fresh, err)
	}
	if ttl := mock.ttls["ac:replay:midtrans:"+id]; ttl != time.Hour {
		t.Fatalf("expected ttl to be forwarded, got %s", ttl)
	}

	if err := client.Unmark(ctx, "midtrans", id); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if fresh, _ := client.MarkOnce(ctx, "midtrans", id, time.Hour); !fresh {
		t.Fatal("expected marker to be gone after unmark")
	}
}

func TestLockReleaseChecksOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.AcquireLock(ctx, "cron-worker", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := client.AcquireLock(ctx, "cron-worker", "owner-b", time.Minute); ok {
		t.Fatal("second owner must not acquire a held lock")
	}
	released, err := client.ReleaseLock(ctx, "cron-worker", "owner-b")
	if err != nil || released {
		t.Fatalf("foreign release must be a no-op: released=%v err=%v", released, err)
	}
	released, err = client.ReleaseLock(ctx, "cron-worker", "owner-a")
	if err != nil || !released {
		t.Fatalf("owner release: released=%v err=%v", released, err)
	}
	if ok, _ := client.AcquireLock(ctx, "cron-worker", "owner-b", time.Minute); !ok {
		t.Fatal("expected lock to be free after release")
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if _, err := client.MarkOnce(context.Background(), "midtrans", "k", time.Second); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.ReleaseLock(context.Background(), "cron-worker", "o"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on uninitialized client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	if got := ReplayKey("midtrans", "id"); got != "ac:replay:midtrans:id" {
		t.Fatalf("unexpected replay key %s", got)
	}
	if got := LockKey("recurring_invoices"); got != "ac:lock:recurring_invoices" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := ReplayKey(" ", "id"); got != "ac:replay:id" {
		t.Fatalf("blank parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{PoolSize: 10}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 10, ReadTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.PoolSize != 10 || opts.ReadTimeout != 3*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/2", DB: 5, PoolSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected url options %+v", opts)
	}
}
