package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:     "test-secret",
		JWTIssuer:     "marketgemini",
		JWTAudience:   "marketgemini-api",
		AccessTTLSec:  900,
		RefreshTTLSec: 3600,
	}
}

type fakeOIDC struct {
	claims *Claims
	err    error
	calls  int
}

func (f *fakeOIDC) Verify(ctx context.Context, raw string) (*Claims, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func signHS256(t *testing.T, cfg config.Config, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func internalToken(t *testing.T, cfg config.Config, scope string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	return signHS256(t, cfg, jwt.MapClaims{
		"sub":   "user-1",
		"iss":   cfg.JWTIssuer,
		"aud":   cfg.JWTAudience,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"scope": scope,
	})
}

func TestHybrid_InternalTokenAccepted(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeOIDC)

	tok := internalToken(t, cfg, DefaultScope, time.Minute)
	v, err := h.Verify(context.Background(), tok, "series:read")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Source != SourceInternal {
		t.Fatalf("source = %s", v.Source)
	}
	if v.Claims.Subject != "user-1" {
		t.Fatalf("subject = %s", v.Claims.Subject)
	}
	if ext.calls != 0 {
		t.Fatalf("external verifier must not run, ran %d times", ext.calls)
	}
}

func TestHybrid_ScopeDenialNeverFallsBack(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{claims: &Claims{Subject: "google-sub"}}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeOIDC)

	// valid internal token, but without the required scope
	tok := internalToken(t, cfg, "series:read", time.Minute)
	_, err := h.Verify(context.Background(), tok, "analyze:run")

	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if ae.Status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", ae.Status)
	}
	if ext.calls != 0 {
		t.Fatalf("scope denial must not consult the external verifier, ran %d times", ext.calls)
	}
}

func TestHybrid_MissingTokenIs401(t *testing.T) {
	cfg := testConfig()
	h := NewHybridVerifier(NewInternalVerifier(cfg), &fakeOIDC{}, ModeOIDC)

	_, err := h.Verify(context.Background(), "", "series:read")
	var ae *Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHybrid_ExpiredInternalFallsBackToOIDC(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{claims: &Claims{Subject: "google-sub", Email: "a@example.com"}}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeOIDC)

	tok := internalToken(t, cfg, DefaultScope, -time.Minute)

	// unscoped route: raw OIDC acceptance is allowed
	v, err := h.Verify(context.Background(), tok, "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Source != SourceExternal {
		t.Fatalf("source = %s, want external", v.Source)
	}
	if ext.calls != 1 {
		t.Fatalf("external verifier calls = %d, want 1", ext.calls)
	}
}

func TestHybrid_ExternalTokenOnScopedRouteNeedsExchange(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{claims: &Claims{Subject: "google-sub"}}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeOIDC)

	_, err := h.Verify(context.Background(), "not-an-internal-token", "series:read")
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if ae.Status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", ae.Status)
	}
}

func TestHybrid_OIDCDirectAllowsScopedRoutes(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{claims: &Claims{Subject: "google-sub"}}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeOIDCDirect)

	v, err := h.Verify(context.Background(), "raw-oidc-token", "series:read")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Source != SourceExternal {
		t.Fatalf("source = %s, want external", v.Source)
	}
}

func TestHybrid_HS256ModeNeverCallsOIDC(t *testing.T) {
	cfg := testConfig()
	ext := &fakeOIDC{claims: &Claims{Subject: "google-sub"}}
	h := NewHybridVerifier(NewInternalVerifier(cfg), ext, ModeHS256)

	_, err := h.Verify(context.Background(), "raw-oidc-token", "")
	var ae *Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if ext.calls != 0 {
		t.Fatalf("HS256 mode must not consult the external verifier, ran %d times", ext.calls)
	}
}

func TestHybrid_WrongIssuerRejected(t *testing.T) {
	cfg := testConfig()
	h := NewHybridVerifier(NewInternalVerifier(cfg), nil, ModeHS256)

	now := time.Now()
	tok := signHS256(t, cfg, jwt.MapClaims{
		"sub":   "user-1",
		"iss":   "someone-else",
		"aud":   cfg.JWTAudience,
		"exp":   now.Add(time.Minute).Unix(),
		"scope": DefaultScope,
	})

	_, err := h.Verify(context.Background(), tok, "")
	var ae *Error
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong issuer, got %v", err)
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	cfg := testConfig()
	issuer := NewTokenIssuer(cfg)
	verifier := NewInternalVerifier(cfg)

	access, err := issuer.IssueAccess("user-42", map[string]string{"email": "a@example.com"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	outcome, claims := verifier.check(access, "series:read")
	if outcome != internalAccepted {
		t.Fatalf("outcome = %v, want accepted", outcome)
	}
	if claims.Subject != "user-42" || claims.Email != "a@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestIssuer_RefreshTokenRejectedAsAccess(t *testing.T) {
	cfg := testConfig()
	issuer := NewTokenIssuer(cfg)
	verifier := NewInternalVerifier(cfg)

	refresh, err := issuer.IssueRefresh("user-42")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	outcome, _ := verifier.check(refresh, "")
	if outcome != internalRejected {
		t.Fatal("refresh token must not pass the access check")
	}

	sub, err := issuer.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("sub = %s", sub)
	}
}

func TestIssuer_AccessTokenRejectedAsRefresh(t *testing.T) {
	cfg := testConfig()
	issuer := NewTokenIssuer(cfg)

	access, err := issuer.IssueAccess("user-42", nil)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := issuer.VerifyRefresh(access); err == nil {
		t.Fatal("access token must not pass the refresh check")
	}
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
