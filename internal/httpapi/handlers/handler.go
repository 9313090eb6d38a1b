package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/ai"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/config"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/router"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/series"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/store/redisstore"
)

// JobPublisher enqueues a router job for the worker. Satisfied by
// rabbitmq.Publisher; tests use a fake.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Registry *ai.Registry

	Orchestrator *router.Orchestrator
	Resolver     *identity.Resolver
	Issuer       *auth.TokenIssuer
	OIDC         auth.OIDCVerifier
	Series       *series.Store
	States       *redisstore.StateStore
	Publisher    JobPublisher
}

func NewHandler(db *gorm.DB, cfg config.Config, oidc auth.OIDCVerifier, states *redisstore.StateStore, pub JobPublisher) *Handler {
	reg := NewProviderRegistry(cfg)
	return &Handler{
		DB:           db,
		Cfg:          cfg,
		Registry:     reg,
		Orchestrator: router.NewOrchestrator(db, reg),
		Resolver:     identity.NewResolver(db),
		Issuer:       auth.NewTokenIssuer(cfg),
		OIDC:         oidc,
		Series:       series.NewStore(cfg.SeriesDataDir),
		States:       states,
		Publisher:    pub,
	}
}

// NewProviderRegistry builds the registry the orchestrator resolves provider
// names through. The model argument of each factory is the per-request hint;
// empty means the configured default.
func NewProviderRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.GeminiModelDefault
		}
		if cfg.GeminiAPIKey == "" {
			return nil, &ai.ConfigError{Provider: "gemini", Reason: "GEMINI_API_KEY not set"}
		}
		return ai.NewGeminiProvider(cfg.GeminiAPIKey, model), nil
	})

	reg.Register("deepseek", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.DeepseekAPIKey == "" {
			return nil, &ai.ConfigError{Provider: "deepseek", Reason: "DEEPSEEK_API_KEY not set"}
		}
		return ai.NewDeepseekProvider(cfg.DeepseekBaseURL, cfg.DeepseekAPIKey, model), nil
	})

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenAIModelDefault
		}
		if cfg.OpenAIAPIKey == "" {
			return nil, &ai.ConfigError{Provider: "openai", Reason: "OPENAI_API_KEY not set"}
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})

	return reg
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func failBind(c *gin.Context, err error) {
	common.Fail(c, http.StatusBadRequest, 40000, err.Error())
}
