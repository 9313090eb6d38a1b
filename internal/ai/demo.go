package ai

import (
	"context"
	"fmt"
)

// DemoProvider stands in for providers with no real adapter. It never fails;
// its content makes the substitution visible to the caller.
type DemoProvider struct {
	Name  string
	Model string
}

func NewDemoProvider(name, model string) *DemoProvider {
	if model == "" {
		model = "demo"
	}
	return &DemoProvider{Name: name, Model: model}
}

func (p *DemoProvider) Invoke(ctx context.Context, messages []Message) (*Result, error) {
	return &Result{
		Content:   fmt.Sprintf("[DEMO] Provider %s not implemented", p.Name),
		TokensIn:  estimateTokens(ExtractPrompt(messages)),
		TokensOut: 0,
		ModelUsed: p.Model,
	}, nil
}
