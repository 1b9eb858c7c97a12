// Package bitset provides a fixed-capacity 256-bit set keyed by small
// integer indices. It backs the registry's dependency bookkeeping, where
// set/clear must be O(1) and iteration must visit members in ascending
// index order via lowest-set-bit scans.
package bitset

import (
	"fmt"
	"math/bits"
)

// Bits is the capacity of a Set256 in bits.
const Bits = 256

const words = Bits / 64

// Set256 is a fixed 256-bit set. The zero value is the empty set.
// Indices are checked: out-of-range indices panic rather than corrupting
// a neighboring word.
type Set256 struct {
	w [words]uint64
}

func check(i uint) {
	if i >= Bits {
		panic(fmt.Sprintf("bitset: index %d out of range [0,%d)", i, Bits))
	}
}

// Set sets bit i and reports whether the bit was previously clear.
func (s *Set256) Set(i uint) bool {
	check(i)
	mask := uint64(1) << (i & 63)
	was := s.w[i>>6]&mask == 0
	s.w[i>>6] |= mask
	return was
}

// Clear clears bit i and reports whether the bit was previously set.
func (s *Set256) Clear(i uint) bool {
	check(i)
	mask := uint64(1) << (i & 63)
	was := s.w[i>>6]&mask != 0
	s.w[i>>6] &^= mask
	return was
}

// Test reports whether bit i is set.
func (s *Set256) Test(i uint) bool {
	check(i)
	return s.w[i>>6]&(uint64(1)<<(i&63)) != 0
}

// Count returns the number of set bits.
func (s *Set256) Count() int {
	n := 0
	for _, w := range s.w {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether no bits are set.
func (s *Set256) Empty() bool {
	return s.w[0]|s.w[1]|s.w[2]|s.w[3] == 0
}

// Reset clears all bits.
func (s *Set256) Reset() {
	s.w = [words]uint64{}
}

// FirstSet returns the index of the lowest set bit, or Bits if the set
// is empty.
func (s *Set256) FirstSet() uint {
	for wi, w := range s.w {
		if w != 0 {
			return uint(wi*64 + bits.TrailingZeros64(w))
		}
	}
	return Bits
}

// Range calls fn for each set bit in ascending index order. If fn returns
// false, iteration stops. Mutating the set during iteration is allowed;
// Range walks a snapshot of each word as it reaches it.
func (s *Set256) Range(fn func(i uint) bool) {
	for wi := 0; wi < words; wi++ {
		w := s.w[wi]
		for w != 0 {
			bit := uint(bits.TrailingZeros64(w))
			w &^= 1 << bit
			if !fn(uint(wi*64) + bit) {
				return
			}
		}
	}
}
