package auth

import (
	"context"
	"net/http"
)

// Mode selects which verification paths the hybrid verifier runs.
type Mode string

const (
	// ModeHS256 accepts internal tokens only.
	ModeHS256 Mode = "HS256"
	// ModeOIDC accepts internal tokens, and external tokens on routes
	// without a scope requirement. Scoped routes still require an
	// internal token obtained via the exchange endpoint.
	ModeOIDC Mode = "OIDC"
	// ModeOIDCDirect additionally lets external tokens through on
	// scoped routes.
	ModeOIDCDirect Mode = "OIDC_DIRECT"
)

// Error carries the HTTP status the middleware should respond with.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Source records which path accepted the token.
type Source string

const (
	SourceInternal Source = "internal"
	SourceExternal Source = "oidc"
)

// Verified is the result of a successful hybrid check.
type Verified struct {
	Claims *Claims
	Source Source
}

// HybridVerifier tries the internal HS256 check first and, depending on
// the outcome and the configured mode, falls back to the external OIDC
// check. A valid internal token that lacks the required scope is a
// terminal 403: the external path is never consulted for it.
type HybridVerifier struct {
	internal *InternalVerifier
	external OIDCVerifier
	mode     Mode
}

func NewHybridVerifier(internal *InternalVerifier, external OIDCVerifier, mode Mode) *HybridVerifier {
	if mode == "" {
		mode = ModeHS256
	}
	return &HybridVerifier{internal: internal, external: external, mode: mode}
}

func (h *HybridVerifier) Verify(ctx context.Context, raw, requiredScope string) (*Verified, error) {
	if raw == "" {
		return nil, &Error{Status: http.StatusUnauthorized, Message: "missing bearer token"}
	}

	outcome, claims := h.internal.check(raw, requiredScope)
	switch outcome {
	case internalAccepted:
		return &Verified{Claims: claims, Source: SourceInternal}, nil
	case internalScopeDenied:
		return nil, &Error{Status: http.StatusForbidden, Message: "insufficient scope"}
	}

	if h.mode == ModeHS256 || h.external == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Message: "invalid or expired token"}
	}

	claims, err := h.external.Verify(ctx, raw)
	if err != nil {
		return nil, &Error{Status: http.StatusUnauthorized, Message: "invalid or expired token"}
	}
	if requiredScope != "" && h.mode != ModeOIDCDirect {
		return nil, &Error{
			Status:  http.StatusForbidden,
			Message: "external token lacks scoped access; exchange it at /auth/google/exchange",
		}
	}
	return &Verified{Claims: claims, Source: SourceExternal}, nil
}
