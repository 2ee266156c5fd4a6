package rbac

import "context"

type ctxKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFromContext(ctx context.Context) (*Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(ctxKey{}).(*Actor)
	return a, ok && a != nil
}
