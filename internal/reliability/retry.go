// Package reliability holds the small shared pieces of retry policy used by
// the collaborator HTTP clients and the streaming recognizer reconnect loop.
package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTerminalRecognizerCode classifies recognizer error codes that must not
// trigger an automatic listener restart. Everything else is either expected
// ("aborted") or recoverable ("no-speech").
func IsTerminalRecognizerCode(code string) bool {
	switch code {
	case "not-allowed", "service-not-allowed", "audio-capture", "network":
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
