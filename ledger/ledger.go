package ledger

import (
	"fmt"
	"hash"
	"math/bits"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/pyezk/tari-1/hashvec"
	"github.com/pyezk/tari-1/mmr"
	"github.com/pyezk/tari-1/mutablemmr"
)

// Ledger owns one commitment tree's checkpoint history: the sealed
// (committed) checkpoints, the in-progress (working) checkpoint sitting in
// front of them, and a MutableMmr that is kept eagerly in sync with
// committed+working rather than rebuilt from them on demand — every push and
// delete lands in the cache the moment it happens, so a query never pays for
// replay.
type Ledger struct {
	mu sync.RWMutex

	tree           Tree
	hashFn         func() hash.Hash
	pruningHorizon uint64
	log            logger.Logger

	committed []Checkpoint
	working   Checkpoint

	store *hashvec.Vector
	cache *mutablemmr.MutableMmr
}

// New returns an empty ledger for tree. pruningHorizon is the number of most
// recent committed checkpoints whose leaves remain provable via
// InclusionProof; pass PruningHorizonUnbounded to never prune.
func New(tree Tree, hashFn func() hash.Hash, pruningHorizon uint64, log logger.Logger) *Ledger {
	store := hashvec.New()
	return &Ledger{
		tree:           tree,
		hashFn:         hashFn,
		pruningHorizon: pruningHorizon,
		log:            log,
		working:        newCheckpoint(0),
		store:          store,
		cache:          mutablemmr.New(store, hashFn, tree.Deletable()),
	}
}

// Tree reports which commitment tree this ledger backs.
func (l *Ledger) Tree() Tree { return l.tree }

// PushLeaf appends leafHash to the working checkpoint and the live cache,
// returning the leaf index it occupies.
func (l *Ledger) PushLeaf(leafHash hashvec.Hash) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	leafIndex := l.totalLeaves()
	if _, err := l.cache.Engine().PushLeaf(leafHash); err != nil {
		return 0, err
	}
	l.working.NodesAdded = append(l.working.NodesAdded, leafHash)
	return leafIndex, nil
}

// Delete marks leafIndex logically removed from this ledger's working
// checkpoint. It is a no-op, reporting false, for non-deletable trees, an
// already-deleted leaf, or an out-of-range leaf.
func (l *Ledger) Delete(leafIndex uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cache.Delete(leafIndex) {
		return false
	}
	l.working.NodesDeleted = append(l.working.NodesDeleted, leafIndex)
	return true
}

// IsDeleted reports whether leafIndex has been marked deleted, in either a
// sealed or the working checkpoint.
func (l *Ledger) IsDeleted(leafIndex uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.IsDeleted(leafIndex)
}

// totalLeaves returns the number of leaves pushed so far, sealed or not.
// Callers must hold l.mu.
func (l *Ledger) totalLeaves() uint64 {
	if n := len(l.committed); n > 0 {
		return l.committed[n-1].AccumulatedNodesAdded + uint64(len(l.working.NodesAdded))
	}
	return uint64(len(l.working.NodesAdded))
}

// LeafCount returns the total number of leaves pushed so far.
func (l *Ledger) LeafCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalLeaves()
}

// NodeCount returns the size of the underlying node store (leaves and
// interior nodes).
func (l *Ledger) NodeCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.Engine().NodeCount()
}

// CheckpointCount returns the number of sealed checkpoints.
func (l *Ledger) CheckpointCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.committed))
}

// CreateCheckpoint seals the working checkpoint and opens a fresh one. The
// cache needs no further update: every push and delete already landed in it
// eagerly.
func (l *Ledger) CreateCheckpoint() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.working.seal()
	l.committed = append(l.committed, l.working)
	l.working = newCheckpoint(l.committed[len(l.committed)-1].AccumulatedNodesAdded)
}

// mmrSizeForLeafCount returns the node-store size produced by pushing
// exactly n leaves: each leaf adds one node plus one for every carry when
// its ordinal's binary representation overflows, which works out to the
// closed form 2n - popcount(n).
func mmrSizeForLeafCount(n uint64) uint64 {
	return 2*n - uint64(bits.OnesCount64(n))
}

// Rewind drops the most recently sealed steps checkpoints, restoring the
// ledger to the state it was in right after the checkpoint that is now
// last. At least one committed checkpoint is always preserved — rewinding
// further than that is clamped, never dropping below it.
func (l *Ledger) Rewind(steps uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.committed) == 0 {
		return nil
	}

	target := uint64(len(l.committed))
	if steps >= target {
		target = 1
	} else {
		target = target - steps
		if target == 0 {
			target = 1
		}
	}

	l.committed = l.committed[:target]
	targetLeafCount := l.committed[target-1].AccumulatedNodesAdded

	l.store.Truncate(mmrSizeForLeafCount(targetLeafCount))

	// The deletion bitmap has no truncate of its own, so rebuild it from
	// only the checkpoints that remain — anything recorded in a dropped
	// checkpoint is forgotten exactly as if it had never been deleted.
	l.cache = mutablemmr.New(l.store, l.hashFn, l.tree.Deletable())
	for _, cp := range l.committed {
		for _, leafIndex := range cp.NodesDeleted {
			l.cache.Delete(leafIndex)
		}
	}

	l.working = newCheckpoint(targetLeafCount)
	return nil
}

// MerkleRoot returns the deletion-aware root (identical to MMROnlyRoot for
// non-deletable trees).
func (l *Ledger) MerkleRoot() (hashvec.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.MerkleRootWithDeletions()
}

// MMROnlyRoot returns the root ignoring any deletions.
func (l *Ledger) MMROnlyRoot() (hashvec.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.MMROnlyRoot()
}

// FetchNode returns the raw node hash at pos, regardless of pruning horizon
// — only leaf-level inclusion proofs are subject to the horizon.
func (l *Ledger) FetchNode(pos uint64) (hashvec.Hash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.Engine().FetchNode(pos)
}

// CheckpointAt returns a copy of the sealed checkpoint at height, failing
// with ErrOutOfRange if no checkpoint has been sealed at that height.
func (l *Ledger) CheckpointAt(height uint64) (Checkpoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if height >= uint64(len(l.committed)) {
		return Checkpoint{}, fmt.Errorf("%w: height %d (have %d checkpoints)", ErrOutOfRange, height, len(l.committed))
	}
	cp := l.committed[height]
	return Checkpoint{
		NodesAdded:            append([]hashvec.Hash(nil), cp.NodesAdded...),
		NodesDeleted:          append([]uint64(nil), cp.NodesDeleted...),
		AccumulatedNodesAdded: cp.AccumulatedNodesAdded,
	}, nil
}

// FetchNodeWithDeletionFlag returns the raw node hash at pos together with
// whether it is a deleted leaf. Interior nodes, which the deletion bitmap
// does not index, always report false.
func (l *Ledger) FetchNodeWithDeletionFlag(pos uint64) (hashvec.Hash, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, err := l.cache.Engine().FetchNode(pos)
	if err != nil {
		return hashvec.Hash{}, false, err
	}
	if leafIndex, ok := mmr.LeafIndexForNode(pos); ok {
		return h, l.cache.IsDeleted(leafIndex), nil
	}
	return h, false, nil
}

// checkpointContaining returns the index into l.committed of the first
// checkpoint whose accumulated leaf count covers leafIndex, or false if
// leafIndex belongs to the still-open working checkpoint. Callers must hold
// l.mu.
func (l *Ledger) checkpointContaining(leafIndex uint64) (int, bool) {
	for i, cp := range l.committed {
		if leafIndex < cp.AccumulatedNodesAdded {
			return i, true
		}
	}
	return 0, false
}

// InclusionProof produces a proof for leafIndex, failing with ErrPruned if
// leafIndex belongs to a checkpoint older than the pruning horizon.
func (l *Ledger) InclusionProof(leafIndex uint64) (*mmr.MerkleProof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if idx, inCommitted := l.checkpointContaining(leafIndex); inCommitted {
		if l.pruningHorizon != PruningHorizonUnbounded {
			age := uint64(len(l.committed)-1-idx) + 1
			if age > l.pruningHorizon {
				return nil, fmt.Errorf("%w: leaf %d sealed %d checkpoints ago (horizon %d)",
					ErrPruned, leafIndex, age, l.pruningHorizon)
			}
		}
	}

	return l.cache.Engine().InclusionProof(leafIndex)
}

// VerifyProof reports whether proof demonstrates that leafHash is included
// under root, exposing the underlying engine's verification to callers that
// only hold a Ledger handle.
func (l *Ledger) VerifyProof(root hashvec.Hash, leafHash hashvec.Hash, proof *mmr.MerkleProof) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.Engine().VerifyInclusion(root, leafHash, proof)
}

// NodeCountAt returns the accumulated leaf count as of committed checkpoint
// height, clamped to the last sealed checkpoint once height runs past the
// end of history. It returns 0 if nothing has been sealed yet.
func (l *Ledger) NodeCountAt(height uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.committed) == 0 {
		return 0
	}
	if height >= uint64(len(l.committed)) {
		height = uint64(len(l.committed)) - 1
	}
	return l.committed[height].AccumulatedNodesAdded
}

// Snapshot returns an independent copy of the ledger: its own node store and
// deletion bitmap (copied, not aliased) but the same committed checkpoint
// history and hash function. Mutating the snapshot — pushing hypothetical
// leaves, deleting hypothetical leaf indices — never touches the original.
// Backend.CalculateMmrRoot uses this to answer "what would the root be"
// without persisting anything.
func (l *Ledger) Snapshot() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	store := l.store.Clone()
	return &Ledger{
		tree:           l.tree,
		hashFn:         l.hashFn,
		pruningHorizon: l.pruningHorizon,
		log:            l.log,
		committed:      append([]Checkpoint(nil), l.committed...),
		working:        l.working,
		store:          store,
		cache:          l.cache.CloneWithStore(store),
	}
}

// ResolveLeafIndex scans committed and working checkpoints, in push order,
// for leafHash and reports the leaf index it occupies. UTXO insertion uses
// this against the range-proof ledger to discover the leaf index a
// just-pushed range-proof hash landed at.
func (l *Ledger) ResolveLeafIndex(leafHash hashvec.Hash) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var acc uint64
	for _, cp := range l.committed {
		for pos, h := range cp.NodesAdded {
			if h == leafHash {
				return acc + uint64(pos), true
			}
		}
		acc += uint64(len(cp.NodesAdded))
	}
	for pos, h := range l.working.NodesAdded {
		if h == leafHash {
			return acc + uint64(pos), true
		}
	}
	return 0, false
}
