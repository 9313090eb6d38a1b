package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dataDir := t.TempDir()
	gold := `{"series": [["2024-01-02", 2034.5], ["2024-01-03", 2040.1], ["2024-01-04", 2031.0]], "meta": {}}`
	if err := os.WriteFile(filepath.Join(dataDir, "gold.json"), []byte(gold), 0o644); err != nil {
		t.Fatalf("write gold fixture: %v", err)
	}
	return config.Config{
		JWTSecret:     "test-secret",
		JWTIssuer:     "marketgemini",
		JWTAudience:   "marketgemini-api",
		AccessTTLSec:  900,
		RefreshTTLSec: 3600,
		AuthMode:      "HS256",
		SeriesDataDir: dataDir,
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.UserIdentity{}, &models.Session{},
		&models.RouterRequest{}, &models.Invocation{}, &models.RouterJob{},
		&models.LocalCredential{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func accessToken(t *testing.T, cfg config.Config, sub, scope string) string {
	t.Helper()
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"iss":   cfg.JWTIssuer,
		"aud":   cfg.JWTAudience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Minute).Unix(),
		"scope": scope,
	})
	s, err := tok.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRouterChat_RequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	body := `{"session_id":"s1","profile":"factual","providers":["gemini"],"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/router/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// unauthenticated requests must leave no accounting rows behind
	var rr, inv int64
	db.Model(&models.RouterRequest{}).Count(&rr)
	db.Model(&models.Invocation{}).Count(&inv)
	if rr != 0 || inv != 0 {
		t.Fatalf("expected no rows, got %d requests / %d invocations", rr, inv)
	}
}

func TestSeries_RequiresScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	// no token at all
	req := httptest.NewRequest(http.MethodGet, "/v1/series?asset=GOLD", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	// valid token, wrong scope
	req = httptest.NewRequest(http.MethodGet, "/v1/series?asset=GOLD", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, "u1", "analyze:run"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSeries_ReturnsDataWithScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/series?asset=GOLD&include_indicators=sma_50", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, "u1", "series:read"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "sma_50") {
		t.Fatalf("expected indicators in body: %s", w.Body.String())
	}
}

func TestSeries_RejectsUnknownAsset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/series?asset=SILVER", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, "u1", "series:read"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_ScoresPostedValues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	body := `{"values":[1,1,1,1,1,1,1,1,1,100],"window":5,"threshold":3.5}`
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, "u1", "analyze:run"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "true") {
		t.Fatalf("expected an anomaly flag in body: %s", w.Body.String())
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "route not found") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

type staticOIDC struct {
	claims *auth.Claims
	err    error
}

func (s *staticOIDC) Verify(ctx context.Context, raw string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func TestWhoAmI_ExternalTokenResolvesGoogleIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	cfg.AuthMode = "OIDC"

	// The user already logged in once through the exchange flow.
	resolver := identity.NewResolver(db)
	seeded, err := resolver.Resolve(context.Background(), identity.Info{
		Provider:    "google",
		ProviderSub: "google-sub-1",
		Email:       "u@example.com",
		DisplayName: "U",
	})
	if err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	r := NewRouter(db, cfg, Deps{OIDC: &staticOIDC{claims: &auth.Claims{
		Subject: "google-sub-1",
		Email:   "u@example.com",
		Name:    "U",
		Issuer:  "https://accounts.google.com",
	}}})

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer raw-google-id-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), seeded.ID) {
		t.Fatalf("whoami must return the exchange-created user, body=%s", w.Body.String())
	}

	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != 1 {
		t.Fatalf("external token must not mint a second user, got %d", users)
	}
	var idents []models.UserIdentity
	if err := db.Find(&idents).Error; err != nil {
		t.Fatalf("load identities: %v", err)
	}
	if len(idents) != 1 || idents[0].Provider != "google" {
		t.Fatalf("expected exactly one google identity, got %+v", idents)
	}
}

func TestGetRouterJob_HiddenFromOtherUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	owner := &models.User{ExternalID: "local:owner", DisplayName: "Owner"}
	other := &models.User{ExternalID: "local:other", DisplayName: "Other"}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}
	job := models.RouterJob{
		ID:        "01JOBULIDULIDULIDULIDULID0",
		UserID:    owner.ID,
		SessionID: "s1",
		Payload:   `{"providers":["gemini"]}`,
		Status:    models.RouterJobQueued,
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}

	get := func(sub string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/router/jobs/"+job.ID, nil)
		req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, sub, "series:read"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := get(owner.ID); w.Code != http.StatusOK {
		t.Fatalf("owner status = %d, body=%s", w.Code, w.Body.String())
	}
	if w := get(other.ID); w.Code != http.StatusNotFound {
		t.Fatalf("other user status = %d, want 404", w.Code)
	}
}

func TestJobs_UnavailableWithoutQueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	cfg := testConfig(t)
	r := NewRouter(db, cfg, Deps{})

	body := `{"session_id":"s1","profile":"factual","providers":["gemini"],"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/router/jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken(t, cfg, "u1", "series:read"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
