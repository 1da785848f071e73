package mmr

import "math/bits"

// BitLength64 returns the number of bits required to represent num, i.e. the
// position of its highest set bit plus one. BitLength64(0) is 0.
func BitLength64(num uint64) uint64 {
	return uint64(bits.Len64(num))
}

// AllOnes reports whether num, in binary, is a contiguous run of 1 bits
// (0, 1, 3, 7, 15, ...). Positions with this property are exactly the peaks
// of a perfect binary tree, which is how height lookups bottom out.
func AllOnes(num uint64) bool {
	return (uint64(1)<<bits.OnesCount64(num))-1 == num
}
