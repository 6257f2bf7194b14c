// Package safeconv converts between int and the unsigned index types of the
// containers. The Must variants panic when a value does not fit.
package safeconv

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// MaxOf returns the largest value representable by the unsigned type I.
func MaxOf[I constraints.Unsigned]() I {
	return ^I(0)
}

// FitsIndex reports whether v can be stored in I without colliding with
// the type's maximum value, which containers reserve as Null.
func FitsIndex[I constraints.Unsigned](v int) bool {
	return v >= 0 && uint64(v) < uint64(MaxOf[I]())
}

// MustIndex converts v to I. The maximum value of I is accepted.
func MustIndex[I constraints.Unsigned](v int) I {
	if v < 0 || uint64(v) > uint64(MaxOf[I]()) {
		panic(fmt.Sprintf("safeconv: %d does not fit %T", v, I(0)))
	}

	return I(v)
}

// IndexToInt converts an index to int. Only a uint64 or uint index above
// math.MaxInt can panic.
func IndexToInt[I constraints.Unsigned](v I) int {
	if uint64(v) > math.MaxInt {
		panic(fmt.Sprintf("safeconv: %d overflows int", uint64(v)))
	}

	return int(v)
}
