package domain

import "context"

type actorKey struct{}

// AnonymousActor is recorded when no authenticated identity is present.
const AnonymousActor = "anonymous"

// WithActor stores the authenticated actor identifier in the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext extracts the actor identifier from the context,
// falling back to AnonymousActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return AnonymousActor
}
