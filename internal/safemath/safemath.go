package safemath

import (
	"fmt"
	"math"

	"strategyfund/internal/errs"
)

// Add returns a+b or ErrArithmeticOverflow. Inputs are value units and
// counters, always non-negative.
func Add(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, fmt.Errorf("%w: %d + %d", errs.ErrArithmeticOverflow, a, b)
	}
	return a + b, nil
}

// SubClamped returns a-b floored at zero. Aggregate decrements (TVL,
// subscriber count) clamp instead of failing so a single desync cannot
// cascade into underflow.
func SubClamped(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}
