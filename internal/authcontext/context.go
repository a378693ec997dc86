// Package authcontext carries per-request authentication data through a context.
package authcontext

import (
	"context"

	"github.com/dgellow/saml-front/internal/saml"
)

type contextKey string

const (
	userKey      contextKey = "auth.user"
	requestIDKey contextKey = "request.id"
)

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user *saml.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser retrieves the authenticated user from the context
func GetUser(ctx context.Context) (*saml.User, bool) {
	user, ok := ctx.Value(userKey).(*saml.User)
	return user, ok && user != nil
}

// WithRequestID adds the request correlation id to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request correlation id, "" when unset
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
