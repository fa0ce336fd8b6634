package auth

import (
	"context"

	"github.com/fundgateapp/fundgate/internal/model"
	"github.com/fundgateapp/fundgate/internal/session"
)

type contextKey struct{}

// WithClaims attaches decoded session claims to the request context.
func WithClaims(ctx context.Context, c *session.Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the session claims, if the request is authenticated.
func FromContext(ctx context.Context) (*session.Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*session.Claims)
	return c, ok
}

func UserID(ctx context.Context) int64 {
	c, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return c.UserID
}

func Email(ctx context.Context) string {
	c, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return c.Email
}

// IsGP reports whether the authenticated user holds the GP role.
func IsGP(ctx context.Context) bool {
	c, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return c.Role == model.RoleGP
}
