package auth

import "context"

type contextKey struct{}

// Identity is the verified caller attached to a request after the access
// token checks out. It carries no team membership: membership is re-checked
// against the database on every team-scoped operation.
type Identity struct {
	UserID int64
	Email  string
	Name   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
