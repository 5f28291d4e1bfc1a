package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient invokes the Gemini generateContent API. Unlike Anthropic,
// Gemini supports constrained decoding, so the invoker sends the response
// schema alongside the prompt and asks for application/json output.
type GeminiClient struct {
	apiKey     string
	textModel  string
	imageModel string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a client. Empty model names select defaults.
func NewGeminiClient(apiKey, textModel, imageModel string) *GeminiClient {
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	return &GeminiClient{
		apiKey:     apiKey,
		textModel:  textModel,
		imageModel: imageModel,
		baseURL:    geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string      `json:"responseMimeType,omitempty"`
	ResponseSchema   *schemaNode `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Invoke performs one generateContent call with the machine-checkable
// response schema attached and returns the reply as raw JSON.
func (c *GeminiClient) Invoke(ctx context.Context, prompt Prompt) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, callErr(ConfigurationMissing, fmt.Errorf("gemini api key not configured"))
	}

	schema := responseSchema()
	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: prompt.System}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt.User}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   &schema,
		},
	}

	resp, err := c.generateContent(ctx, c.textModel, req)
	if err != nil {
		return nil, err
	}

	text := firstText(resp)
	if text == "" {
		return nil, callErr(MalformedResponse, fmt.Errorf("empty response"))
	}
	return extractJSON(text)
}

// GenerateImage asks the image model for one picture and returns it as a
// data URL, or "" if the reply carried no image.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", callErr(ConfigurationMissing, fmt.Errorf("gemini api key not configured"))
	}

	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}

	resp, err := c.generateContent(ctx, c.imageModel, req)
	if err != nil {
		return "", err
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil {
				return fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, part.InlineData.Data), nil
			}
		}
	}
	return "", nil
}

func (c *GeminiClient) generateContent(ctx context.Context, model string, req geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, callErr(Unreachable, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

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

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, callErr(MalformedResponse, fmt.Errorf("unmarshal response: %w", err))
	}
	return &apiResp, nil
}

func firstText(resp *geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
