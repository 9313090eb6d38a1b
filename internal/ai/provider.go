package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message is the canonical role/content pair. Requests are converted into
// this type once at the HTTP boundary; every adapter consumes only it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the normalized outcome of one provider invocation.
type Result struct {
	Content   string
	TokensIn  int
	TokensOut int
	ModelUsed string
}

type Provider interface {
	Invoke(ctx context.Context, messages []Message) (*Result, error)
}

// HTTPError is a non-retryable upstream HTTP failure (or a retryable one
// whose retry budget is exhausted).
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ConfigError reports a missing credential or endpoint.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// ErrorCode maps an adapter error to the error_code persisted on a failed
// invocation row.
func ErrorCode(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return fmt.Sprintf("http_%d", he.StatusCode)
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return "config_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "provider_error"
}

// ExtractPrompt returns the current user utterance: the content of the last
// message, or "" for an empty list.
func ExtractPrompt(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}

// decodeContent tolerates the content shapes providers actually return:
// a plain string, an OpenAI-style list of typed parts, or a Gemini-style
// object with a "parts" array.
func decodeContent(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.Text)
		}
		out := b.String()
		return out, out != ""
	}

	var native struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}
	if err := json.Unmarshal(raw, &native); err == nil && len(native.Parts) > 0 {
		var b strings.Builder
		for _, p := range native.Parts {
			b.WriteString(p.Text)
		}
		out := b.String()
		return out, out != ""
	}

	return "", false
}

// estimateTokens is a rough ~4 chars/token estimate used when an upstream
// response carries no usage counters.
func estimateTokens(s string) int {
	n := (len(s) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
