package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	anthropicModel      = "claude-3-haiku-20240307"
	anthropicVersion    = "2023-06-01"
	anthropicMaxRetries = 3
	anthropicInitDelay  = 500 * time.Millisecond
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	initDelay  time.Duration
	client     *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		initDelay:  anthropicInitDelay,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
	if c.model == "" {
		c.model = anthropicModel
	}
	if c.baseURL == "" {
		c.baseURL = anthropicBaseURL
	}
	if c.maxRetries <= 0 {
		c.maxRetries = anthropicMaxRetries
	}
	if c.client.Timeout == 0 {
		c.client.Timeout = 15 * time.Second
	}
	return c
}

// Complete sends a system+user prompt and returns the first text block.
// 429 and 5xx responses are retried with exponential backoff.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if len(apiResp.Content) == 0 {
			return "", fmt.Errorf("empty response content")
		}
		return apiResp.Content[0].Text, nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
