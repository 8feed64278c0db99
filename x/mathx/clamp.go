package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Within reports whether d is within ±pct percent of nominal n.
// Integer-only: 100·d is compared against (100±pct)·n.
func Within[T constraints.Unsigned](d, n T, pct uint8) bool {
	d100 := uint64(d) * 100
	lo := uint64(n) * uint64(100-uint64(pct))
	hi := uint64(n) * uint64(100+uint64(pct))
	return Between(d100, lo, hi)
}
