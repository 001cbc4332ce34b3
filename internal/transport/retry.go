package transport

import (
	"math"
	"math/rand"
	"net/http"
	"time"
)

// retryPolicy is exponential backoff with full jitter.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func newRetryPolicy(maxRetries int) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retryPolicy{
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   15 * time.Second,
	}
}

// delay returns random(0, min(maxDelay, baseDelay * 2^(attempt-1))), floored at 50ms.
func (p retryPolicy) delay(attempt int) time.Duration {
	exp := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(p.maxDelay) {
		exp = float64(p.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < 50*time.Millisecond {
		d = 50 * time.Millisecond
	}
	return d
}

// isSafeMethod reports whether a request can be replayed without side effects.
// Job creation, batch uploads and state changes are sent at most once.
func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
