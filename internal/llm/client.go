// Package llm talks to the generative providers: prompt assembly, one-shot
// invocation with a strict output contract, response normalization, and
// best-effort image generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"

// Invoker performs one attempt at calling the generative model with a
// built prompt. It returns the raw JSON reply or a *CallError classifying
// the failure. Retrying is the engine's job, not the invoker's.
type Invoker interface {
	Invoke(ctx context.Context, prompt Prompt) (json.RawMessage, error)
}

// AnthropicClient invokes the Anthropic Messages API. The credential is
// held by the client instance, constructed once per session; there is no
// package-level provider state.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicClient creates a client for the given model. An empty model
// selects the default.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicClient{
		apiKey:    apiKey,
		model:     model,
		maxTokens: 4000,
		baseURL:   anthropicURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke performs one Messages API call and returns the reply as raw JSON.
func (c *AnthropicClient) Invoke(ctx context.Context, prompt Prompt) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, callErr(ConfigurationMissing, fmt.Errorf("anthropic api key not configured"))
	}

	req := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    prompt.System,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt.User},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("API call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, callErr(MalformedResponse, fmt.Errorf("unmarshal response: %w", err))
	}
	if len(apiResp.Content) == 0 {
		return nil, callErr(MalformedResponse, fmt.Errorf("empty response"))
	}

	slog.Debug("anthropic call",
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return extractJSON(apiResp.Content[0].Text)
}

// classifyStatus maps an HTTP error status onto the failure taxonomy.
func classifyStatus(status int, body []byte) *CallError {
	err := fmt.Errorf("API error %d: %s", status, strings.TrimSpace(string(body)))
	switch status {
	case http.StatusTooManyRequests:
		return callErr(RateLimited, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return callErr(Unauthorized, err)
	default:
		return callErr(Unreachable, err)
	}
}

// extractJSON strips any incidental markdown fencing and validates that
// what remains parses as JSON. A parse failure is MalformedResponse, not
// a crash.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !json.Valid([]byte(text)) {
		return nil, callErr(MalformedResponse, fmt.Errorf("reply is not valid JSON (raw: %.120s)", text))
	}
	return json.RawMessage(text), nil
}
