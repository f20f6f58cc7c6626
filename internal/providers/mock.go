package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MockInvoker produces deterministic structured output so the full pipeline
// runs without any provider configured.
type MockInvoker struct{}

func NewMockInvoker() *MockInvoker {
	return &MockInvoker{}
}

func (m *MockInvoker) Name() string { return "mock" }

func (m *MockInvoker) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if err := ctx.Err(); err != nil {
		return InvokeResult{}, fmt.Errorf("mock invoke: %w", err)
	}
	seed := sha256.Sum256([]byte(req.Prompt + req.PageText))
	text := fmt.Sprintf(`{"summary":"Deterministic mock extraction.","keywords":["mock"],"content_hash":%q}`,
		hex.EncodeToString(seed[:8]))
	sent := estimateTokens(req.Prompt) + estimateTokens(req.PageText)
	if len(req.ImagePNG) > 0 {
		sent += len(req.ImagePNG) / 1024
	}
	if sent == 0 {
		sent = 1
	}
	return InvokeResult{
		Text:           text,
		TokensSent:     sent,
		TokensReceived: estimateTokens(text),
		LatencyMS:      1,
	}, nil
}

func estimateTokens(s string) int {
	return len(strings.Fields(s))
}
