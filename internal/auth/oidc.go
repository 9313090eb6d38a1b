package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// OIDCVerifier validates a token against an external identity provider.
// It is an interface so the hybrid verifier can be tested with a fake.
type OIDCVerifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// JWKSVerifier verifies RS256 ID tokens against a remote JWKS endpoint.
// Keys are fetched and refreshed in the background by keyfunc.
type JWKSVerifier struct {
	issuer   string
	audience string
	keys     keyfunc.Keyfunc
}

func NewJWKSVerifier(ctx context.Context, issuer, jwksURI, audience string) (*JWKSVerifier, error) {
	if jwksURI == "" {
		return nil, errors.New("jwks uri not configured")
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("load jwks %s: %w", jwksURI, err)
	}
	return &JWKSVerifier{issuer: issuer, audience: audience, keys: keys}, nil
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(2 * time.Minute),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.Parse(raw, v.keys.Keyfunc, opts...)
	if err != nil {
		return nil, err
	}
	m, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	claims := claimsFromMap(m)
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
