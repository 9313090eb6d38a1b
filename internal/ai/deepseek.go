package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DeepseekProvider speaks the OpenAI-compatible /chat/completions wire
// format. The model field carries a resolved deepseek model id
// (deepseek-chat / deepseek-v3 / deepseek-r1).
type DeepseekProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewDeepseekProvider(baseURL, apiKey, model string) *DeepseekProvider {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	return &DeepseekProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type oaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaChatReq struct {
	Model    string  `json:"model"`
	Messages []oaMsg `json:"messages"`
}

type oaChatResp struct {
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// decodeOpenAIStyle pulls content and usage out of an OpenAI-compatible
// completion response, tolerating string content, list-of-parts content,
// and the legacy choice-level text field.
func decodeOpenAIStyle(provider string, data []byte) (content string, tokensIn, tokensOut int, err error) {
	var decoded oaChatResp
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", 0, 0, fmt.Errorf("%s: decode response: %w", provider, err)
	}

	if len(decoded.Choices) > 0 {
		choice := decoded.Choices[0]
		if c, ok := decodeContent(choice.Message.Content); ok {
			content = c
		} else if choice.Text != "" {
			content = choice.Text
		}
	}
	if content == "" {
		content = fmt.Sprintf("[%s response w/o content] %.400s", provider, string(data))
	}

	tokensIn = decoded.Usage.PromptTokens
	tokensOut = decoded.Usage.CompletionTokens
	if tokensOut == 0 {
		tokensOut = estimateTokens(content)
	}
	return content, tokensIn, tokensOut, nil
}

func (p *DeepseekProvider) Invoke(ctx context.Context, messages []Message) (*Result, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &ConfigError{Provider: "deepseek", Reason: "api key is required"}
	}

	out := make([]oaMsg, 0, len(messages))
	for _, m := range messages {
		out = append(out, oaMsg{Role: m.Role, Content: m.Content})
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}

	data, err := postJSONWithRetry(ctx, p.Client, "deepseek", url, headers, oaChatReq{
		Model:    p.Model,
		Messages: out,
	})
	if err != nil {
		return nil, err
	}

	content, tokensIn, tokensOut, err := decodeOpenAIStyle("deepseek", data)
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
