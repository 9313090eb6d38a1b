package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
)

const (
	// ClaimsKey is the gin context key the verified claims are stored under.
	ClaimsKey = "auth_claims"
	// SourceKey records whether the internal or the external path accepted
	// the token.
	SourceKey = "auth_source"
)

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireScope runs the hybrid token check and aborts with the status the
// verifier decided on (401 for bad tokens, 403 for scope failures).
func RequireScope(verifier *auth.HybridVerifier, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := verifier.Verify(c.Request.Context(), bearerToken(c), scope)
		if err != nil {
			var ae *auth.Error
			if errors.As(err, &ae) {
				common.Fail(c, ae.Status, ae.Status*100, ae.Message)
			} else {
				common.Fail(c, http.StatusUnauthorized, 40100, "unauthorized")
			}
			c.Abort()
			return
		}
		c.Set(ClaimsKey, v.Claims)
		c.Set(SourceKey, string(v.Source))
		c.Next()
	}
}

// AuthRequired is RequireScope without a scope requirement.
func AuthRequired(verifier *auth.HybridVerifier) gin.HandlerFunc {
	return RequireScope(verifier, "")
}

// ClaimsFrom returns the claims a Require* middleware stored, if any.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// SourceFrom reports which verification path accepted the request's token.
func SourceFrom(c *gin.Context) auth.Source {
	return auth.Source(c.GetString(SourceKey))
}
