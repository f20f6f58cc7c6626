package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OpenAIInvoker uses the standard chat completions API. Vision payloads are
// sent as data-URI image parts.
type OpenAIInvoker struct {
	apiKey string
	client *http.Client
}

func NewOpenAIInvoker() *OpenAIInvoker {
	return &OpenAIInvoker{
		apiKey: os.Getenv("OPENAI_API_KEY"),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIInvoker) Name() string { return "openai" }

func (o *OpenAIInvoker) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if o.apiKey == "" {
		return InvokeResult{}, fmt.Errorf("openai key missing")
	}
	userContent := []map[string]any{}
	prompt := req.Prompt
	if req.PageText != "" {
		prompt = prompt + "\n\nPage content:\n" + req.PageText
	}
	userContent = append(userContent, map[string]any{"type": "text", "text": prompt})
	if len(req.ImagePNG) > 0 {
		dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG)
		userContent = append(userContent, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURI},
		})
	}
	payload, _ := json.Marshal(map[string]any{
		"model":       req.Model,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
		"top_p":       req.TopP,
		"messages": []map[string]any{
			{"role": "system", "content": "You extract structured data from quality-management document pages. Respond with JSON only."},
			{"role": "user", "content": userContent},
		},
	})

	start := time.Now()
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return InvokeResult{LatencyMS: time.Since(start).Milliseconds()}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start).Milliseconds()
	if resp.StatusCode >= 400 {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("openai error %d: %s", resp.StatusCode, string(raw))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("openai returned empty choices")
	}
	return InvokeResult{
		Text:           parsed.Choices[0].Message.Content,
		TokensSent:     parsed.Usage.PromptTokens,
		TokensReceived: parsed.Usage.CompletionTokens,
		LatencyMS:      latency,
	}, nil
}
