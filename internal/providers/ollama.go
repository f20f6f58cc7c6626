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
	"strings"
	"time"
)

// OllamaInvoker runs prompts against a local Ollama instance. Vision payloads
// use the images field of /api/generate.
type OllamaInvoker struct {
	baseURL string
	client  *http.Client
}

func NewOllamaInvoker() *OllamaInvoker {
	baseURL := strings.TrimSpace(os.Getenv("QMFLOW_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

func (o *OllamaInvoker) Name() string { return "ollama" }

func (o *OllamaInvoker) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	prompt := req.Prompt
	if req.PageText != "" {
		prompt = prompt + "\n\nPage content:\n" + req.PageText
	}
	body := map[string]any{
		"model":  req.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
			"top_p":       req.TopP,
		},
	}
	if len(req.ImagePNG) > 0 {
		body["images"] = []string{base64.StdEncoding.EncodeToString(req.ImagePNG)}
	}
	payload, _ := json.Marshal(body)

	start := time.Now()
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return InvokeResult{LatencyMS: time.Since(start).Milliseconds()}, fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	latency := time.Since(start).Milliseconds()
	if resp.StatusCode >= 400 {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("ollama generate error %d: %s", resp.StatusCode, string(raw))
	}
	var parsed struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return InvokeResult{LatencyMS: latency}, fmt.Errorf("ollama returned empty response")
	}
	return InvokeResult{
		Text:           parsed.Response,
		TokensSent:     parsed.PromptEvalCount,
		TokensReceived: parsed.EvalCount,
		LatencyMS:      latency,
	}, nil
}
