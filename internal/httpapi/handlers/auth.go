package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/redisstore"
)

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokenPair mints the internal access/refresh pair for a resolved user.
func (h *Handler) tokenPair(user *models.User) (gin.H, error) {
	extra := map[string]string{"name": user.DisplayName}
	if user.Email != nil {
		extra["email"] = *user.Email
	}
	access, err := h.Issuer.IssueAccess(user.ID, extra)
	if err != nil {
		return nil, err
	}
	refresh, err := h.Issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"user":               gin.H{"id": user.ID, "email": user.Email},
		"token_type":         "Bearer",
		"access_token":       access,
		"expires_in":         h.Issuer.AccessTTLSeconds(),
		"refresh_token":      refresh,
		"refresh_expires_in": h.Issuer.RefreshTTLSeconds(),
	}, nil
}

// GoogleLogin starts the PKCE S256 flow: generate verifier/state, stash them
// in Redis, redirect to the authorization endpoint.
func (h *Handler) GoogleLogin(c *gin.Context) {
	if h.Cfg.OIDCClientID == "" || h.Cfg.OIDCRedirectURI == "" {
		common.Fail(c, http.StatusInternalServerError, 50020, "OIDC not configured")
		return
	}
	if h.States == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50300, "login state store unavailable")
		return
	}

	verifier, err := randomURLSafe(48)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50021, "pkce generation failed")
		return
	}
	state, err := randomURLSafe(24)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50021, "pkce generation failed")
		return
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	err = h.States.Save(c.Request.Context(), state, redisstore.LoginState{
		CodeVerifier: verifier,
		RedirectURI:  h.Cfg.OIDCRedirectURI,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50022, "saving login state failed")
		return
	}

	q := url.Values{
		"client_id":             {h.Cfg.OIDCClientID},
		"redirect_uri":          {h.Cfg.OIDCRedirectURI},
		"response_type":         {"code"},
		"scope":                 {"openid email profile"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"state":                 {state},
		"access_type":           {"offline"},
		"prompt":                {"consent"},
	}
	c.Redirect(http.StatusFound, h.Cfg.OIDCAuthEndpoint+"?"+q.Encode())
}

// GoogleCallback finishes the PKCE flow: redeem the code, verify the
// id_token, resolve the local user and mint internal tokens.
func (h *Handler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		common.Fail(c, http.StatusBadRequest, 40020, "missing code/state")
		return
	}
	if h.States == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50300, "login state store unavailable")
		return
	}

	st, err := h.States.Take(c.Request.Context(), state)
	if errors.Is(err, redisstore.ErrNotFound) {
		common.Fail(c, http.StatusUnauthorized, 40120, "unknown or expired state")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50022, "loading login state failed")
		return
	}

	idToken, err := h.exchangeCode(c, code, st.CodeVerifier)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40121, err.Error())
		return
	}

	h.finishOIDCLogin(c, idToken)
}

// exchangeCode redeems the authorization code at the token endpoint and
// returns the id_token.
func (h *Handler) exchangeCode(c *gin.Context, code, verifier string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {h.Cfg.OIDCClientID},
		"client_secret": {h.Cfg.OIDCClientSecret},
		"redirect_uri":  {h.Cfg.OIDCRedirectURI},
		"code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost,
		h.Cfg.OIDCTokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: %d", resp.StatusCode)
	}

	var tok struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	if tok.IDToken == "" {
		return "", errors.New("no id_token in token response")
	}
	return tok.IDToken, nil
}

// GoogleExchange accepts a raw Google id_token (non-PKCE clients) and swaps
// it for internal scoped tokens.
func (h *Handler) GoogleExchange(c *gin.Context) {
	var body struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failBind(c, err)
		return
	}
	h.finishOIDCLogin(c, body.IDToken)
}

func (h *Handler) finishOIDCLogin(c *gin.Context, idToken string) {
	if h.OIDC == nil {
		common.Fail(c, http.StatusInternalServerError, 50020, "OIDC not configured")
		return
	}
	claims, err := h.OIDC.Verify(c.Request.Context(), idToken)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40122, fmt.Sprintf("invalid id_token: %v", err))
		return
	}

	user, err := h.Resolver.Resolve(c.Request.Context(), identity.Info{
		Provider:    "google",
		ProviderSub: claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50023, fmt.Sprintf("identity resolution failed: %v", err))
		return
	}

	pair, err := h.tokenPair(user)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50024, "issuing tokens failed")
		return
	}
	log.Printf("[auth] issued internal tokens from oidc sub=%s user=%s", claims.Subject, user.ID)
	common.OK(c, pair)
}

// Refresh swaps a valid refresh token for a fresh access/refresh pair.
func (h *Handler) Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		failBind(c, err)
		return
	}

	sub, err := h.Issuer.VerifyRefresh(body.RefreshToken)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40123, "invalid refresh token")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", sub).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40124, "unknown user")
		return
	}

	pair, err := h.tokenPair(&user)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50024, "issuing tokens failed")
		return
	}
	common.OK(c, pair)
}

// --- local accounts (provider "local") ---

type localCredentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

// LocalRegister creates a password-backed identity under provider "local".
// The bcrypt hash lives in its own credential row keyed by email.
func (h *Handler) LocalRegister(c *gin.Context) {
	var body localCredentials
	if err := c.ShouldBindJSON(&body); err != nil {
		failBind(c, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var existing models.LocalCredential
	err := h.DB.WithContext(c.Request.Context()).First(&existing, "email = ?", email).Error
	if err == nil {
		common.Fail(c, http.StatusConflict, 40900, "email already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusInternalServerError, 50025, "credential lookup failed")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50026, "hashing password failed")
		return
	}

	name := body.Name
	if name == "" {
		name = email
	}
	user, err := h.Resolver.Resolve(c.Request.Context(), identity.Info{
		Provider:    "local",
		ProviderSub: email,
		Email:       email,
		DisplayName: name,
	})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50023, fmt.Sprintf("identity resolution failed: %v", err))
		return
	}

	cred := models.LocalCredential{UserID: user.ID, Email: email, PasswordHash: hash}
	if err := h.DB.WithContext(c.Request.Context()).Create(&cred).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50027, "saving credential failed")
		return
	}

	pair, err := h.tokenPair(user)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50024, "issuing tokens failed")
		return
	}
	common.OK(c, pair)
}

// LocalLogin verifies email/password and mints internal tokens.
func (h *Handler) LocalLogin(c *gin.Context) {
	var body localCredentials
	if err := c.ShouldBindJSON(&body); err != nil {
		failBind(c, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var cred models.LocalCredential
	if err := h.DB.WithContext(c.Request.Context()).First(&cred, "email = ?", email).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40125, "invalid email or password")
		return
	}
	if !auth.CheckPassword(cred.PasswordHash, body.Password) {
		common.Fail(c, http.StatusUnauthorized, 40125, "invalid email or password")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, "id = ?", cred.UserID).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 50023, "loading user failed")
		return
	}

	pair, err := h.tokenPair(&user)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50024, "issuing tokens failed")
		return
	}
	common.OK(c, pair)
}
