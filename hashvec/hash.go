// Package hashvec provides the append-only leaf storage the mmr and ledger
// packages are built on: an ordered, thread-safe sequence of fixed-width
// hashes with truncate and random-access read.
package hashvec

import "encoding/hex"

// Size is the width, in bytes, of every hash held by a Vector. The core is
// parameterized on a 256-bit hash function, so all hashes in this module are
// 32 bytes wide regardless of which hash.Hash implementation produced them.
const Size = 32

// Hash is a fixed-width digest. The zero Hash is simply the all-zero digest;
// an empty MMR's root is not this value but the hash of the empty input
// (see bagPeaks in package mmr), exactly as spec §4.2 requires.
type Hash [Size]byte

// Bytes returns a copy of the underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// FromBytes copies up to Size bytes of b into a Hash, zero-padding short
// inputs on the right. Callers producing digests from a hash.Hash should
// always supply exactly Size bytes; this helper exists for test fixtures and
// callers materializing hashes from wire data.
func FromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}
