package providers

import "strings"

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTimeout   ErrorType = "timeout"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"), strings.Contains(e, "canceled"):
		return ErrorTimeout
	case strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "connection refused"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// SafeMessage maps a provider error onto a short caller-facing summary.
// Provider stack traces and response bodies never reach callers.
func SafeMessage(err error) string {
	switch ClassifyError(err) {
	case ErrorQuota:
		return "AI provider quota exhausted"
	case ErrorRate:
		return "AI provider rate limit hit, retry later"
	case ErrorTimeout:
		return "AI invocation timed out"
	case ErrorTransient:
		return "AI provider temporarily unavailable"
	case ErrorPermanent:
		return "AI provider rejected the request"
	}
	return ""
}
