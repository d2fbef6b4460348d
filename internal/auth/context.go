package auth

import "context"

type actorKey struct{}

// WithActor returns a context carrying the authenticated user's id.
func WithActor(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the authenticated user's id, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(actorKey{}).(string)
	return userID, ok && userID != ""
}
