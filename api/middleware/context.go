package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
)

type actorKey struct{}

// actor is the authenticated caller as seen by handlers.
type actor struct {
	userID string
	role   string
}

func actorFrom(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

func withActor(ctx context.Context, update func(*actor)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	a := actorFrom(ctx)
	update(&a)
	return context.WithValue(ctx, actorKey{}, a)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withActor(ctx, func(a *actor) { a.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withActor(ctx, func(a *actor) { a.role = role })
}

func UserIDFromContext(ctx context.Context) string { return actorFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return actorFrom(ctx).role }

// ActorIDFromContext returns the caller's id, or an Unauthorized error when
// the request never passed Auth.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
