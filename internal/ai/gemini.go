package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type GeminiProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenReq struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenResp struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GeminiProvider) Invoke(ctx context.Context, messages []Message) (*Result, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigError{Provider: "gemini", Reason: "api key is required"}
	}

	prompt := ExtractPrompt(messages)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(p.BaseURL, "/"), p.Model, p.APIKey)

	payload := geminiGenReq{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}

	data, err := postJSONWithRetry(ctx, p.Client, "gemini", url, nil, payload)
	if err != nil {
		return nil, err
	}

	var decoded geminiGenResp
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	content := ""
	if len(decoded.Candidates) > 0 {
		var b strings.Builder
		for _, part := range decoded.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		content = b.String()
	}
	if content == "" {
		content = fmt.Sprintf("[gemini response w/o content] %.400s", string(data))
	}

	return &Result{
		Content:   content,
		TokensIn:  decoded.UsageMetadata.PromptTokenCount,
		TokensOut: decoded.UsageMetadata.CandidatesTokenCount,
		ModelUsed: p.Model,
	}, nil
}
