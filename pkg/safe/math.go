package safe

import (
	"math"
)

// Sub performs int64 subtraction and panics on overflow/underflow.
// Metric deltas are computed from upstream-controlled numbers, so the
// arithmetic is checked rather than silently wrapping.
func Sub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic("SAFE_SUB_OVERFLOW")
	}
	return a - b
}

// Abs returns the absolute value of v and panics on math.MinInt64,
// which has no positive int64 counterpart.
func Abs(v int64) int64 {
	if v == math.MinInt64 {
		panic("SAFE_ABS_OVERFLOW")
	}
	if v < 0 {
		return -v
	}
	return v
}
