package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/ai"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/auth"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/common"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/httpapi/middleware"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/router"
)

// resolveChatUser picks the effective identity for a chat request: verified
// claims if the route was authenticated, or the dev override when enabled.
// The claims' provenance decides how they map to a user: internal tokens
// carry the user id as subject, externally verified tokens carry the issuer's
// sub and resolve through the google identity.
func (h *Handler) resolveChatUser(c *gin.Context, req *router.ChatRequest) (*models.User, error) {
	if req.DebugIdentity != nil {
		if !h.Cfg.DebugIdentityEnabled {
			return nil, errors.New("debug_identity not enabled")
		}
		log.Printf("[router_chat] using debug_identity provider=%s sub=%s",
			req.DebugIdentity.Provider, req.DebugIdentity.ProviderSub)
		return h.Resolver.Resolve(c.Request.Context(), *req.DebugIdentity)
	}

	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil, errors.New("no verified identity on request")
	}

	if middleware.SourceFrom(c) == auth.SourceExternal {
		return h.Resolver.Resolve(c.Request.Context(), identity.Info{
			Provider:    "google",
			ProviderSub: claims.Subject,
			Email:       claims.Email,
			DisplayName: claims.Name,
		})
	}

	var u models.User
	if err := h.DB.WithContext(c.Request.Context()).
		First(&u, "id = ?", claims.Subject).Error; err != nil {
		return nil, fmt.Errorf("token subject has no user: %w", err)
	}
	return &u, nil
}

// RouterChat executes a synchronous multi-provider chat round.
func (h *Handler) RouterChat(c *gin.Context) {
	var req router.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	log.Printf("[router_chat] session_id=%s profile=%s providers=%v deepseek_mode=%s",
		req.SessionID, req.Profile, req.Providers, req.DeepseekMode)

	user, err := h.resolveChatUser(c, &req)
	if err != nil {
		if req.DebugIdentity != nil && !h.Cfg.DebugIdentityEnabled {
			common.Fail(c, http.StatusBadRequest, 40001, "debug_identity not enabled")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, fmt.Sprintf("get_current_user_error: %v", err))
		return
	}

	sess, err := h.Resolver.ResolveSession(c.Request.Context(), user.ID, req.SessionID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, fmt.Sprintf("session_error: %v", err))
		return
	}

	final, results, err := h.Orchestrator.CallProviders(c.Request.Context(), &req, user, sess)
	if err != nil {
		var ve *router.ValidationError
		if errors.As(err, &ve) {
			common.Fail(c, http.StatusBadRequest, 40002, ve.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, fmt.Sprintf("call_providers_error: %v", err))
		return
	}

	common.OK(c, router.ChatResponse{Final: final, Results: results})
}

// --- /v1/router/digest ---

type digestRequest struct {
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id"`
	Messages  []ai.Message `json:"messages" binding:"required"`
}

var digestIntents = map[string]bool{
	"bug_report":  true,
	"explanation": true,
	"summary":     true,
	"general":     true,
}

func buildDigestPrompt(messages []ai.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return fmt.Sprintf(`You are an intent classifier for a developer chat UI.

Read the conversation below and choose exactly ONE intent label from:

  - bug_report
  - explanation
  - summary
  - general

Return strictly JSON only, in the following format:
{
  "intent": "bug_report"
}

Conversation:
%s`, b.String())
}

// RouterDigest classifies the conversation's intent with Gemini. Any failure
// along the way degrades to "general" rather than an error.
func (h *Handler) RouterDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBind(c, err)
		return
	}

	intent := "general"

	provider, err := h.Registry.Get(c.Request.Context(), "gemini", h.Cfg.GeminiModelDefault)
	if err == nil {
		res, err := provider.Invoke(c.Request.Context(), []ai.Message{
			{Role: "user", Content: buildDigestPrompt(req.Messages)},
		})
		if err == nil {
			if parsed, ok := parseIntent(res.Content); ok {
				intent = parsed
			}
		}
	}

	common.OK(c, gin.H{"intent": intent})
}

// parseIntent extracts {"intent": ...} from model output that may wrap the
// JSON in prose or code fences. Naive bracket extraction is enough here.
func parseIntent(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	var payload struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return "", false
	}
	intent := strings.ToLower(strings.TrimSpace(payload.Intent))
	if !digestIntents[intent] {
		return "", false
	}
	return intent, true
}

// --- /v1/auth/whoami ---

func (h *Handler) WhoAmI(c *gin.Context) {
	user, err := h.resolveChatUser(c, &router.ChatRequest{})
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, fmt.Sprintf("get_current_user_error: %v", err))
		return
	}

	resp := gin.H{
		"user_id":      user.ID,
		"external_id":  user.ExternalID,
		"display_name": user.DisplayName,
		"email":        user.Email,
	}

	if ident, err := h.Resolver.PrimaryIdentity(c.Request.Context(), user.ID); err == nil && ident != nil {
		resp["primary_identity"] = gin.H{
			"provider":     ident.Provider,
			"provider_sub": ident.ProviderSub,
			"email":        ident.Email,
			"display_name": ident.DisplayName,
		}
	}

	common.OK(c, resp)
}
