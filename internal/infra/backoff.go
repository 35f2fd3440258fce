package infra

import (
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential backoff duration for a given
// retry count: baseDelay * 2^retryCount, capped at maxDelay.
// A negative retryCount returns baseDelay.
func CalculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 seconds is already far beyond maxDelay; cap early to avoid
	// shifting into overflow.
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)

	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}

// CapRetryAfter bounds a server-suggested wait. Upstream rate-limit hints
// are honored but never trusted past maxDelay; a non-positive hint falls
// back to baseDelay.
func CapRetryAfter(d time.Duration) time.Duration {
	if d <= 0 {
		return baseDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
