package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the normalized view of a verified token, independent of whether
// the internal or the external path accepted it.
type Claims struct {
	Subject string
	Scope   string
	Email   string
	Name    string
	Issuer  string
	Raw     jwt.MapClaims
}

func (c *Claims) HasScope(required string) bool {
	if required == "" {
		return true
	}
	for _, s := range strings.Fields(c.Scope) {
		if s == required {
			return true
		}
	}
	return false
}

func claimsFromMap(m jwt.MapClaims) *Claims {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	return &Claims{
		Subject: str("sub"),
		Scope:   str("scope"),
		Email:   str("email"),
		Name:    str("name"),
		Issuer:  str("iss"),
		Raw:     m,
	}
}
