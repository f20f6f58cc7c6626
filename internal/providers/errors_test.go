package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":        ErrorQuota,
		"429 too many requests":     ErrorRate,
		"context deadline exceeded": ErrorTimeout,
		"service unavailable":       ErrorTransient,
		"bad request":               ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestSafeMessageNeverEmptyForErrors(t *testing.T) {
	for _, msg := range []string{"quota", "429", "timeout", "unavailable", "anything else"} {
		if SafeMessage(errors.New(msg)) == "" {
			t.Fatalf("empty safe message for %q", msg)
		}
	}
}
