package app

import (
	"context"

	"parkgate/internal/domain"
)

type principalKey struct{}

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller attached by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

func actorOf(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return string(p.Role) + ":" + p.Username
	}
	return "system"
}
