package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Vars so tests can shrink the waits.
var (
	maxAttempts   = 5
	retryBaseWait = 1 * time.Second
	retryJitter   = 1 * time.Second
)

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// postJSONWithRetry POSTs the payload and returns the response body.
// 429/503 responses are retried with exponential backoff (1s base, doubled
// per attempt, plus uniform jitter in [0,1)s) up to maxAttempts total tries;
// every other non-2xx status and any transport error propagates immediately.
func postJSONWithRetry(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	backoff := retryBaseWait
	var lastStatus int
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}

		if retryable(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
			_ = resp.Body.Close()
			lastStatus = resp.StatusCode
			if attempt == maxAttempts-1 {
				break
			}
			wait := backoff + time.Duration(rand.Float64()*float64(retryJitter))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
			continue
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := strings.TrimSpace(string(data))
			if len(msg) > 4*1024 {
				msg = msg[:4*1024]
			}
			return nil, &HTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: msg}
		}
		return data, nil
	}

	return nil, &HTTPError{Provider: provider, StatusCode: lastStatus, Body: "retry budget exhausted"}
}
