package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/ai"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/routing"
)

const ensembleProfile = "ensemble"

// buildConsolidationPrompt embeds the user's prompt and every base answer so
// the consolidator can resolve contradictions into one structured reply.
func buildConsolidationPrompt(req *ChatRequest, baseResults []ResultItem) string {
	userPrompt := ai.ExtractPrompt(req.Messages)

	lines := []string{
		"You are an ensemble model that consolidates multiple model outputs.",
		"",
		"Original user prompt:",
		userPrompt,
		"",
		"Below are answers from different models/providers.",
		"Your job is to:",
		"- Identify and correct factual errors.",
		"- Resolve contradictions.",
		"- Produce a single, clear, structured answer.",
		"",
		"Model answers:",
	}

	for _, r := range baseResults {
		lines = append(lines,
			fmt.Sprintf("--- Provider=%s, model=%s, profile=%s, cost=%g, latency=%dms ---",
				r.Provider, r.Model, r.Profile, r.CostUSD, r.LatencyMs),
			r.Content,
			"",
		)
	}

	lines = append(lines,
		"Now produce a single consolidated answer for the user. "+
			"Prefer correctness, clarity, and explicit caveats if uncertain.")
	return strings.Join(lines, "\n")
}

// callEnsemble invokes the consolidation provider exactly once and logs its
// invocation under the ensemble profile.
func (o *Orchestrator) callEnsemble(ctx context.Context, tx *gorm.DB, user *models.User, sess *models.Session, rr *models.RouterRequest, req *ChatRequest, baseResults []ResultItem) (*ResultItem, error) {
	start := time.Now()

	name := req.Consolidate.Provider
	model := req.Consolidate.Model
	if name == ProviderDeepseek && model == "" {
		model = routing.ModelV3
	}

	var (
		modelUsed  = model
		confidence = 0.9
		costUSD    = 0.0
		content    string
		tokensIn   int
		tokensOut  int
		success    = true
		errorCode  *string
	)
	if modelUsed == "" {
		modelUsed = "unknown"
	}
	if name == ProviderGemini {
		confidence = 0.92
	}

	messages := []ai.Message{{Role: "user", Content: buildConsolidationPrompt(req, baseResults)}}

	adapter, err := o.provider(ctx, name, model)
	_, isDemo := adapter.(*ai.DemoProvider)
	if isDemo {
		// Unimplemented consolidators log a flat mid confidence under a
		// synthetic "{provider}-ensemble" model tag.
		confidence = 0.5
		modelUsed = name + "-ensemble"
	}

	var res *ai.Result
	if err == nil {
		res, err = adapter.Invoke(ctx, messages)
	}
	if err != nil {
		success = false
		code := ai.ErrorCode(err)
		errorCode = &code
		content = fmt.Sprintf("[ENSEMBLE ERROR] %v", err)
		confidence = 0.0
	} else {
		content = res.Content
		tokensIn = res.TokensIn
		tokensOut = res.TokensOut
		if res.ModelUsed != "" && !isDemo {
			modelUsed = res.ModelUsed
		}
		if name == ProviderDeepseek {
			costUSD = routing.EstimateDeepseekCost(modelUsed, tokensIn, tokensOut)
		}
	}

	latencyMs := int(time.Since(start).Milliseconds())

	inv := &models.Invocation{
		UserID:          user.ID,
		SessionID:       sess.ID,
		RouterRequestID: &rr.ID,
		Provider:        name,
		Model:           modelUsed,
		Profile:         ensembleProfile,
		Confidence:      confidence,
		TokensIn:        tokensIn,
		TokensOut:       tokensOut,
		CostUSD:         costUSD,
		LatencyMs:       latencyMs,
		Success:         success,
		ErrorCode:       errorCode,
	}
	if err := tx.Create(inv).Error; err != nil {
		return nil, &PersistenceError{Op: "log ensemble invocation", Err: err}
	}

	return &ResultItem{
		Provider:   name,
		Model:      modelUsed,
		Profile:    ensembleProfile,
		Content:    content,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		LatencyMs:  latencyMs,
		CostUSD:    costUSD,
		Confidence: confidence,
	}, nil
}
