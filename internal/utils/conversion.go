/*
This file contains common utility functions for converting between different
numeric widths, particularly for SDK math operations and checked narrowing.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrValueOutOfRange  = errors.New("value does not fit target width")
	ErrConversionFailed = errors.New("conversion failed")
)

// Uint64ToUint32 narrows a uint64 to uint32, failing instead of truncating.
func Uint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d exceeds uint32", ErrValueOutOfRange, v)
	}
	return uint32(v), nil
}

// Uint64ToInt64 narrows a uint64 to int64, failing instead of wrapping.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d exceeds int64", ErrValueOutOfRange, v)
	}
	return int64(v), nil
}

// BlockSpanToInt converts an elapsed block count into an SDK Int for use in
// reward arithmetic, failing if the span would wrap int64.
func BlockSpanToInt(span uint64) (sdkmath.Int, error) {
	v, err := Uint64ToInt64(span)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sdkmath.NewInt(v), nil
}

// RequirePositive validates a caller-supplied principal or reward amount.
func RequirePositive(amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrAmountNil
	}
	if amount.Sign() <= 0 {
		return ErrAmountNegative
	}
	return nil
}

// ParseAmount parses a base-10 amount string into an SDK Int. Used at the API
// boundary where amounts arrive as strings to avoid float rounding.
func ParseAmount(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not a base-10 integer", ErrConversionFailed, s)
	}
	return v, nil
}
