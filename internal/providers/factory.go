package providers

import (
	"fmt"
	"strings"
)

func New(name string) (Invoker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mock":
		return NewMockInvoker(), nil
	case "ollama":
		return NewOllamaInvoker(), nil
	case "openai":
		return NewOpenAIInvoker(), nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", name)
}
