package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/ai"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/routing"
)

// Orchestrator runs one router request end to end: it records the
// RouterRequest row, invokes each requested provider sequentially, appends
// one Invocation row per call, optionally consolidates through an ensemble
// provider, and commits everything in a single transaction.
type Orchestrator struct {
	db       *gorm.DB
	registry *ai.Registry
}

func NewOrchestrator(db *gorm.DB, registry *ai.Registry) *Orchestrator {
	return &Orchestrator{db: db, registry: registry}
}

// CallProviders is the orchestration entry point. A single provider's
// failure is recorded, not propagated; persistence failures abort the whole
// run and roll every row back.
func (o *Orchestrator) CallProviders(ctx context.Context, req *ChatRequest, user *models.User, sess *models.Session) (*FinalResult, []ResultItem, error) {
	if len(req.Providers) == 0 {
		return nil, nil, &ValidationError{Msg: "providers must not be empty"}
	}

	var (
		final   *FinalResult
		results []ResultItem
	)

	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// RouterRequest precedes all of its invocations.
		rr := &models.RouterRequest{
			UserID:    user.ID,
			SessionID: sess.ID,
			Profile:   req.Profile,
		}
		if err := tx.Create(rr).Error; err != nil {
			return &PersistenceError{Op: "create router request", Err: err}
		}

		var dsMeta *DeepseekRouting
		for _, name := range req.Providers {
			item, meta, err := o.callSingle(ctx, tx, user, sess, rr, name, req)
			if err != nil {
				return err
			}
			results = append(results, *item)
			if meta != nil {
				dsMeta = meta
			}
		}

		if len(results) == 1 || !req.Consolidate.Enabled {
			first := results[0]
			final = &FinalResult{
				RequestID:        rr.ID,
				Content:          first.Content,
				Strategy:         StrategySingleModel,
				Provider:         first.Provider,
				Model:            first.Model,
				EstimatedCostUSD: first.CostUSD,
				DeepseekRouting:  dsMeta,
			}
			return nil
		}

		ens, err := o.callEnsemble(ctx, tx, user, sess, rr, req, results)
		if err != nil {
			return err
		}
		final = &FinalResult{
			RequestID:        rr.ID,
			Content:          ens.Content,
			Strategy:         StrategyEnsemble,
			Provider:         ens.Provider,
			Model:            ens.Model,
			EstimatedCostUSD: ens.CostUSD,
			DeepseekRouting:  dsMeta,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return final, results, nil
}

// resolveDeepseek turns the requested mode string into a concrete model id.
// The classifier always runs so the auto recommendation stays honest even
// when a manual mode overrides it.
func resolveDeepseek(mode string, messages []ai.Message) (string, *DeepseekRouting) {
	decision := routing.Classify(ai.ExtractPrompt(messages))

	switch mode {
	case DeepseekModeChat, DeepseekModeV3, DeepseekModeR1:
	default:
		mode = DeepseekModeAuto
	}

	resolved := decision.Model
	switch mode {
	case DeepseekModeChat:
		resolved = routing.ModelChat
	case DeepseekModeV3:
		resolved = routing.ModelV3
	case DeepseekModeR1:
		resolved = routing.ModelR1
	}

	return resolved, &DeepseekRouting{
		RequestedMode:        mode,
		ResolvedModel:        resolved,
		AutoRecommendedModel: decision.Model,
		ConfidenceScore:      decision.Confidence,
		ConfidenceLabel:      routing.ConfidenceLabel(decision.Confidence),
		ConfidenceMessage:    decision.Rationale,
	}
}

// provider resolves a registered adapter, substituting the demo adapter for
// names no factory claims. A factory that fails to build its adapter (for
// example a missing API key) is a real error, not demo material, so it is
// returned for the caller to record as a failed invocation.
func (o *Orchestrator) provider(ctx context.Context, name, model string) (ai.Provider, error) {
	p, err := o.registry.Get(ctx, name, model)
	if errors.Is(err, ai.ErrUnknownProvider) {
		return ai.NewDemoProvider(name, model), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (o *Orchestrator) callSingle(ctx context.Context, tx *gorm.DB, user *models.User, sess *models.Session, rr *models.RouterRequest, name string, req *ChatRequest) (*ResultItem, *DeepseekRouting, error) {
	start := time.Now()

	var (
		modelUsed  = "unknown"
		confidence = 0.5
		costUSD    = 0.0
		content    string
		tokensIn   int
		tokensOut  int
		success    = true
		errorCode  *string
		dsMeta     *DeepseekRouting
	)

	hint := req.ModelHintMap[name]

	var (
		adapter ai.Provider
		perr    error
	)
	switch name {
	case ProviderDeepseek:
		// For deepseek the hint carries a mode, not a model id.
		mode := hint
		if mode == "" {
			mode = req.DeepseekMode
		}
		var resolved string
		resolved, dsMeta = resolveDeepseek(mode, req.Messages)
		modelUsed = resolved
		confidence = dsMeta.ConfidenceScore
		adapter, perr = o.provider(ctx, name, resolved)
	default:
		if hint != "" {
			modelUsed = hint
		}
		adapter, perr = o.provider(ctx, name, hint)
	}

	var res *ai.Result
	err := perr
	if err == nil {
		res, err = adapter.Invoke(ctx, req.Messages)
	}
	if err != nil {
		// Contained: the failure becomes a recorded invocation so the other
		// providers still run.
		success = false
		code := ai.ErrorCode(err)
		errorCode = &code
		content = fmt.Sprintf("Error: %v", err)
		confidence = 0.0
	} else {
		content = res.Content
		tokensIn = res.TokensIn
		tokensOut = res.TokensOut
		if res.ModelUsed != "" {
			modelUsed = res.ModelUsed
		}
		switch name {
		case ProviderDeepseek:
			costUSD = routing.EstimateDeepseekCost(modelUsed, tokensIn, tokensOut)
		case ProviderGemini:
			costUSD = 0.0 // placeholder pending real pricing
			confidence = 0.88
		}
	}

	latencyMs := int(time.Since(start).Milliseconds())

	inv := &models.Invocation{
		UserID:          user.ID,
		SessionID:       sess.ID,
		RouterRequestID: &rr.ID,
		Provider:        name,
		Model:           modelUsed,
		Profile:         req.Profile,
		Confidence:      confidence,
		TokensIn:        tokensIn,
		TokensOut:       tokensOut,
		CostUSD:         costUSD,
		LatencyMs:       latencyMs,
		Success:         success,
		ErrorCode:       errorCode,
	}
	if err := tx.Create(inv).Error; err != nil {
		return nil, nil, &PersistenceError{Op: "log invocation", Err: err}
	}

	return &ResultItem{
		Provider:   name,
		Model:      modelUsed,
		Profile:    req.Profile,
		Content:    content,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		LatencyMs:  latencyMs,
		CostUSD:    costUSD,
		Confidence: confidence,
	}, dsMeta, nil
}
