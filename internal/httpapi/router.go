package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/httpapi/handlers"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/httpapi/middleware"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/redisstore"
)

// Deps carries the externally constructed pieces the router needs. OIDC and
// Publisher may be nil (HS256-only deployments, no queue); the routes that
// need them respond 5xx instead of panicking.
type Deps struct {
	OIDC      auth.OIDCVerifier
	States    *redisstore.StateStore
	Publisher handlers.JobPublisher
}

func NewRouter(db *gorm.DB, cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	verifier := auth.NewHybridVerifier(
		auth.NewInternalVerifier(cfg),
		deps.OIDC,
		auth.Mode(cfg.AuthMode),
	)

	h := handlers.NewHandler(db, cfg, deps.OIDC, deps.States, deps.Publisher)

	r.GET("/ping", h.Ping)
	r.GET("/healthz", h.Ping)

	// auth
	r.GET("/auth/login", h.GoogleLogin)
	r.GET("/auth/callback", h.GoogleCallback)
	r.POST("/auth/google/exchange", h.GoogleExchange)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/local/register", h.LocalRegister)
	r.POST("/auth/local/login", h.LocalLogin)

	// router surface; authentication required, no specific scope
	chat := r.Group("/")
	chat.Use(middleware.AuthRequired(verifier))
	chat.POST("/v1/router/chat", h.RouterChat)
	chat.POST("/v1/router/digest", h.RouterDigest)
	chat.GET("/v1/auth/whoami", h.WhoAmI)
	chat.POST("/v1/router/jobs", h.CreateRouterJob)
	chat.GET("/v1/router/jobs/:id", h.GetRouterJob)

	// market data, scope series:read
	read := r.Group("/")
	read.Use(middleware.RequireScope(verifier, "series:read"))
	read.GET("/v1/series", h.GetSeries)
	read.GET("/v1/anomaly", h.AnomalyForAsset)

	// analysis, scope analyze:run
	analyze := r.Group("/")
	analyze.Use(middleware.RequireScope(verifier, "analyze:run"))
	analyze.POST("/v1/analyze", h.Analyze)
	analyze.POST("/v1/anomaly", h.AnomalyForPayload)

	return r
}
