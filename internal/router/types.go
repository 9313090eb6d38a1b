package router

import (
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/ai"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/identity"
)

// Provider names accepted by the router. Anything else resolves to the demo
// adapter.
const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepseek = "deepseek"
)

// Deepseek mode strings carried by requests; anything unrecognized is
// treated as auto.
const (
	DeepseekModeAuto = "auto"
	DeepseekModeChat = "chat"
	DeepseekModeV3   = "v3"
	DeepseekModeR1   = "r1"
)

type ConsolidateConfig struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type ChatRequest struct {
	SessionID    string            `json:"session_id" binding:"required"`
	Profile      string            `json:"profile" binding:"required"`
	Providers    []string          `json:"providers"`
	Messages     []ai.Message      `json:"messages" binding:"required"`
	Consolidate  ConsolidateConfig `json:"consolidate"`
	ModelHintMap map[string]string `json:"model_hint_map"`
	DeepseekMode string            `json:"deepseek_mode"`

	// Dev-only identity override; honored only when enabled in config.
	DebugIdentity *identity.Info `json:"debug_identity,omitempty"`
}

// ResultItem is the per-provider slice of the response.
type ResultItem struct {
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	Profile    string  `json:"profile"`
	Content    string  `json:"content"`
	TokensIn   int     `json:"tokens_in"`
	TokensOut  int     `json:"tokens_out"`
	LatencyMs  int     `json:"latency_ms"`
	CostUSD    float64 `json:"cost_usd"`
	Confidence float64 `json:"confidence"`
}

// DeepseekRouting reports how the deepseek sub-model was picked. The auto
// recommendation is always the classifier's verdict, even when a manual mode
// overrode it.
type DeepseekRouting struct {
	RequestedMode        string  `json:"requested_mode"`
	ResolvedModel        string  `json:"resolved_model"`
	AutoRecommendedModel string  `json:"auto_recommended_model"`
	ConfidenceScore      float64 `json:"confidence_score"`
	ConfidenceLabel      string  `json:"confidence_label"`
	ConfidenceMessage    string  `json:"confidence_message,omitempty"`
}

const (
	StrategySingleModel = "single_model"
	StrategyEnsemble    = "ensemble"
)

type FinalResult struct {
	RequestID        string           `json:"request_id,omitempty"`
	Content          string           `json:"content"`
	Strategy         string           `json:"strategy"`
	DeepseekRouting  *DeepseekRouting `json:"deepseek_routing,omitempty"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
	EstimatedCostUSD float64          `json:"estimated_cost_usd"`
}

type ChatResponse struct {
	Final   *FinalResult `json:"final"`
	Results []ResultItem `json:"results"`
}
