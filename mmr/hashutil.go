package mmr

import (
	"encoding/binary"
	"hash"
)

// HashWriteUint64 feeds value, big-endian, into hasher. Interior nodes
// commit to their own 1-based position this way before hashing their
// children, so that two structurally identical subtrees occurring at
// different positions never collide.
func HashWriteUint64(hasher hash.Hash, value uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], value)
	hasher.Write(b[:])
}

// HashPosPair returns H(pos || a || b), the standard interior-node
// combination used throughout this package.
func HashPosPair(hasher hash.Hash, pos uint64, a, b []byte) []byte {
	hasher.Reset()
	HashWriteUint64(hasher, pos)
	hasher.Write(a)
	hasher.Write(b)
	return hasher.Sum(nil)
}
