package auth

import (
	"context"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

type contextKey string

const claimsKey contextKey = "vitalia-auth-claims"

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// IdentityFromContext returns the verified tenant identity of the request.
func IdentityFromContext(ctx context.Context) (tenant.Identity, error) {
	claims, ok := FromContext(ctx)
	if !ok {
		return tenant.Identity{}, ErrUnauthenticated
	}
	identity, err := tenant.ParseIdentity(claims.Subject)
	if err != nil {
		return tenant.Identity{}, ErrUnauthenticated
	}
	return identity, nil
}

// PrincipalFromContext returns the identity together with the profile hints
// used when the profile is created lazily.
func PrincipalFromContext(ctx context.Context) (domain.Principal, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	claims, _ := FromContext(ctx)
	return domain.Principal{Identity: identity, Email: claims.Email, FullName: claims.Name}, nil
}
