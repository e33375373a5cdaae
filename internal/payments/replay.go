package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artisancrate/billing-engine/pkg/redis"
)

// ReplayGuard lets the webhook adapter acknowledge byte-identical deliveries
// without opening a transaction. Correctness never depends on it.
type ReplayGuard struct {
	store redis.ReplayStore
	ttl   time.Duration
	scope string
}

// NewReplayGuard builds a guard over the given store.
func NewReplayGuard(store redis.ReplayStore, ttl time.Duration, scope string) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &ReplayGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark records key and reports whether it had already been seen.
func (g *ReplayGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("replay key is required")
	}
	fresh, err := g.store.MarkOnce(ctx, g.scope, key, g.ttl)
	if err != nil {
		return false, fmt.Errorf("mark replay key: %w", err)
	}
	return !fresh, nil
}

// Forget drops key so the gateway's retry is processed again.
func (g *ReplayGuard) Forget(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("replay key is required")
	}
	return g.store.Unmark(ctx, g.scope, key)
}
