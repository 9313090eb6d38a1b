package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4.1-mini"
	}
	return &OpenAIProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIProvider) Invoke(ctx context.Context, messages []Message) (*Result, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigError{Provider: "openai", Reason: "api key is required"}
	}

	out := make([]oaMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, oaMsg{Role: m.Role, Content: m.Content})
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}

	data, err := postJSONWithRetry(ctx, p.Client, "openai", url, headers, oaChatReq{
		Model:    p.Model,
		Messages: out,
	})
	if err != nil {
		return nil, err
	}

	content, tokensIn, tokensOut, err := decodeOpenAIStyle("openai", data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content:   content,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		ModelUsed: p.Model,
	}, nil
}
