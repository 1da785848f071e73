package ledger

import "github.com/pyezk/tari-1/hashvec"

// Checkpoint records the leaves added and leaves deleted during one sealed
// interval of a tree's history, plus the running leaf total through the end
// of that interval. AccumulatedNodesAdded is what lets fetch_mmr_node_count
// answer "how many leaves existed as of checkpoint height h" without
// replaying anything.
type Checkpoint struct {
	NodesAdded            []hashvec.Hash
	NodesDeleted          []uint64
	AccumulatedNodesAdded uint64
}

// newCheckpoint starts a fresh working checkpoint. Its AccumulatedNodesAdded
// field holds the running total from prior checkpoints until seal recomputes
// it to include this checkpoint's own additions.
func newCheckpoint(accumulatedBefore uint64) Checkpoint {
	return Checkpoint{AccumulatedNodesAdded: accumulatedBefore}
}

// seal finalizes c's running total now that no further leaves will be added
// to it.
func (c *Checkpoint) seal() {
	c.AccumulatedNodesAdded += uint64(len(c.NodesAdded))
}
