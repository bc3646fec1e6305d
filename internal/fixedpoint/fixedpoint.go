// Package fixedpoint converts real values to saturating signed 32-bit fixed-point integers.
//
// A value x is stored as round(x * 2^fracBits), rounding half away from zero, then
// clamped to [math.MinInt32, math.MaxInt32]. With 16 fractional bits (Q16.16) the
// representable range is [-32768.0, 32767.99998] with a step of 1/65536.
package fixedpoint

import (
	"fmt"
	"math"
)

const (
	Q16Shift = 16
	Q16One   = 1 << Q16Shift
)

// Scale returns 2^fracBits.
func Scale(fracBits int) float64 {
	return math.Ldexp(1, fracBits)
}

// Encode converts x to fixed point with the given number of fractional bits.
// NaN encodes to 0; infinities and out-of-range values saturate.
func Encode(x float64, fracBits int) int32 {
	if math.IsNaN(x) {
		return 0
	}
	r := math.Round(x * Scale(fracBits))
	if r >= math.MaxInt32 {
		return math.MaxInt32
	}
	if r <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(r)
}

// EncodeQ16 is Encode with 16 fractional bits.
func EncodeQ16(x float64) int32 {
	return Encode(x, Q16Shift)
}

// Saturates reports whether encoding x clamps it to the int32 range.
func Saturates(x float64, fracBits int) bool {
	if math.IsNaN(x) {
		return false
	}
	r := math.Round(x * Scale(fracBits))
	return r > math.MaxInt32 || r < math.MinInt32
}

// Decode converts a fixed-point value back to its real value.
func Decode(v int32, fracBits int) float64 {
	return float64(v) / Scale(fracBits)
}

// EncodeSlice encodes src into a new slice and returns it along with the number of
// saturated elements.
func EncodeSlice(src []float64, fracBits int) ([]int32, int) {
	out := make([]int32, len(src))
	saturated := 0
	for i, x := range src {
		if Saturates(x, fracBits) {
			saturated++
		}
		out[i] = Encode(x, fracBits)
	}
	return out, saturated
}

// Range returns the smallest and largest real values representable with fracBits.
func Range(fracBits int) (lo, hi float64) {
	return Decode(math.MinInt32, fracBits), Decode(math.MaxInt32, fracBits)
}

// MinMax returns the extrema of a fixed-point slice. Both are 0 for an empty slice.
func MinMax(v []int32) (lo, hi int32) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// FormatName renders the Qm.n name of a 32-bit format, e.g. Q16.16.
func FormatName(fracBits int) string {
	return fmt.Sprintf("Q%d.%d", 32-fracBits, fracBits)
}
