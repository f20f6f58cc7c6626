package providers

import "context"

// InvokeRequest carries one prompt to a model. PageText is filled for
// ocr-method documents, ImagePNG for vision-method ones.
type InvokeRequest struct {
	Operation   string  `json:"operation"`
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
	PageText    string  `json:"page_text,omitempty"`
	ImagePNG    []byte  `json:"image_png,omitempty"`
}

type InvokeResult struct {
	Text           string `json:"text"`
	TokensSent     int    `json:"tokens_sent"`
	TokensReceived int    `json:"tokens_received"`
	LatencyMS      int64  `json:"latency_ms"`
}

// Invoker is the AI invocation port. Implementations must honor ctx
// cancellation; the coordinator wraps every call in a bounded timeout.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error)
}
