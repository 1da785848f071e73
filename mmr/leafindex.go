package mmr

// LeafIndexForNode reports the 0-based leaf ordinal a leaf-level node
// position holds, and false if pos is an interior node. It inverts
// MMRIndex: since a leaf's node position is exactly the node count of the
// MMR immediately before that leaf was pushed, LeafCount of that prefix
// size is the leaf's own ordinal.
func LeafIndexForNode(pos uint64) (uint64, bool) {
	if IndexHeight(pos) != 0 {
		return 0, false
	}
	return LeafCount(pos), true
}
