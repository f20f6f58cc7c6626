package providers

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMockInvokerReturnsJSON(t *testing.T) {
	m := NewMockInvoker()
	res, err := m.Invoke(context.Background(), InvokeRequest{
		Operation: "process_page",
		Prompt:    "Extract the fields.",
		PageText:  "Cleaning procedure, step one.",
	})
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(res.Text), &payload); err != nil {
		t.Fatalf("mock output is not JSON: %v", err)
	}
	if res.TokensSent <= 0 || res.TokensReceived <= 0 {
		t.Fatalf("expected positive token counts, got %d/%d", res.TokensSent, res.TokensReceived)
	}
}

func TestMockInvokerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockInvoker().Invoke(ctx, InvokeRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
