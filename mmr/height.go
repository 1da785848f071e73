package mmr

// The height/position arithmetic below follows the standard MMR construction
// used by grin/mimblewimble and by python-proofmarshal: positions are 1-based
// internally (so that "all binary 1s" identifies perfect-tree peaks), while
// every other part of this package works with 0-based node indices.

// JumpLeftPerfect finds the left-most node at the same height as pos by
// subtracting the size of the largest perfect subtree that precedes it.
// Repeatedly applying this walks a position down to the all-ones position
// that encodes its height.
func JumpLeftPerfect(pos uint64) uint64 {
	msb := uint64(1) << (BitLength64(pos) - 1)
	return pos - (msb - 1)
}

// PosHeight returns the tree height of a 1-based position.
func PosHeight(pos uint64) uint64 {
	for !AllOnes(pos) {
		pos = JumpLeftPerfect(pos)
	}
	return BitLength64(pos) - 1
}

// IndexHeight returns the tree height of a 0-based node index.
func IndexHeight(i uint64) uint64 {
	return PosHeight(i + 1)
}

// JumpRightSibling moves from a 1-based position to its right sibling at the
// same height.
func JumpRightSibling(pos uint64) uint64 {
	return pos + (uint64(1) << (PosHeight(pos) + 1)) - 1
}

// LeftChild returns the position of the top-most left child of parent pos,
// or false if pos is itself a leaf (height 0).
func LeftChild(pos uint64) (uint64, bool) {
	height := PosHeight(pos)
	if height == 0 {
		return 0, false
	}
	return pos - (uint64(1) << height), true
}

// SiblingOffset returns the distance, in 0-based indices, between a node at
// the given height and its sibling.
func SiblingOffset(height uint64) uint64 {
	return (uint64(2) << height) - 1
}

// ParentOffset returns the distance, in 0-based indices, between a node at
// the given height and its parent, counted from the node's left child.
func ParentOffset(height uint64) uint64 {
	return uint64(2) << height
}
