// Package num provides checked uint64 arithmetic for balance and notional
// math. Overflow is rejected, never wrapped: every monetary quantity in the
// exchange is a fixed-width integer in the asset's smallest unit.
package num

import (
	"errors"
	"math/bits"
)

var (
	// ErrOverflow is returned when a checked operation would exceed uint64 range.
	ErrOverflow = errors.New("math overflow")

	// ErrUnderflow is returned when a checked subtraction would go negative.
	ErrUnderflow = errors.New("math underflow")
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow. Used for price*size notional values.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
