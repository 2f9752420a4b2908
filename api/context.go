package api

import (
	"context"

	"github.com/GoCodeAlone/registry/store"
)

type contextKey int

const contextKeyUser contextKey = iota

// SetUserContext returns a new context with the user attached.
func SetUserContext(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, u)
}

// UserFromContext extracts the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(contextKeyUser).(*store.User)
	return u
}
