package session

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Principal is the caller of a request: the identity as currently stored
// plus the session it authenticated with.
type Principal struct {
	entity.AuthView
	SessionID string
	Claims    *Claims
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
