package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
)

// DefaultScope is granted to every internally issued access token.
const DefaultScope = "series:read analyze:run"

// TokenIssuer mints internal HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(cfg config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  time.Duration(cfg.AccessTTLSec) * time.Second,
		refreshTTL: time.Duration(cfg.RefreshTTLSec) * time.Second,
	}
}

// AccessTTLSeconds reports the access token lifetime for expires_in fields.
func (i *TokenIssuer) AccessTTLSeconds() int { return int(i.accessTTL / time.Second) }

// RefreshTTLSeconds reports the refresh token lifetime.
func (i *TokenIssuer) RefreshTTLSeconds() int { return int(i.refreshTTL / time.Second) }

// IssueAccess signs a short-lived access token for the given subject.
// Extra claims (email, name) are carried through so handlers can echo
// identity without another DB round trip.
func (i *TokenIssuer) IssueAccess(sub string, extra map[string]string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   sub,
		"iss":   i.issuer,
		"aud":   i.audience,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   now.Add(i.accessTTL).Unix(),
		"scope": DefaultScope,
	}
	for k, v := range extra {
		if v != "" {
			claims[k] = v
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// IssueRefresh signs a long-lived refresh token. Refresh tokens carry no
// scope and are only accepted by VerifyRefresh.
func (i *TokenIssuer) IssueRefresh(sub string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iss": i.issuer,
		"aud": i.audience,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(i.refreshTTL).Unix(),
		"typ": "refresh",
	})
	return token.SignedString(i.secret)
}

// VerifyRefresh validates a refresh token and returns its subject.
func (i *TokenIssuer) VerifyRefresh(raw string) (string, error) {
	claims, err := parseHS256(raw, i.secret, i.issuer, i.audience)
	if err != nil {
		return "", err
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return "", errors.New("not a refresh token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("refresh token has no subject")
	}
	return sub, nil
}

// internalOutcome tags the result of the internal HS256 check so the
// hybrid verifier can tell a scope failure apart from a signature failure.
type internalOutcome int

const (
	// internalAccepted: valid internal token with the required scope.
	internalAccepted internalOutcome = iota
	// internalScopeDenied: valid internal token missing the required
	// scope. Terminal, the external path must not be consulted.
	internalScopeDenied
	// internalRejected: not a valid internal token (bad signature,
	// expired, wrong issuer or audience).
	internalRejected
)

// InternalVerifier checks tokens minted by TokenIssuer.
type InternalVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewInternalVerifier(cfg config.Config) *InternalVerifier {
	return &InternalVerifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
	}
}

func (v *InternalVerifier) check(raw, requiredScope string) (internalOutcome, *Claims) {
	m, err := parseHS256(raw, v.secret, v.issuer, v.audience)
	if err != nil {
		return internalRejected, nil
	}
	if typ, _ := m["typ"].(string); typ == "refresh" {
		return internalRejected, nil
	}
	claims := claimsFromMap(m)
	if !claims.HasScope(requiredScope) {
		return internalScopeDenied, claims
	}
	return internalAccepted, claims
}

func parseHS256(raw string, secret []byte, issuer, audience string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}
