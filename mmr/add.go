package mmr

import (
	"hash"

	"github.com/pyezk/tari-1/hashvec"
)

// NodeStore is the append-only node sequence an Engine is built over. A
// hashvec.Vector satisfies it directly.
type NodeStore interface {
	Append(h hashvec.Hash) (uint64, error)
	GetNode(index uint64) (hashvec.Hash, error)
	Len() uint64
}

// addHashedLeaf appends a single leaf to store and back-fills every interior
// node that the addition completes. Because of how an MMR is built
// left-to-right, whenever the node following the one just written would sit
// higher in the tree, at least one new peak can be closed immediately — the
// loop below repeats that check, climbing one level each time, until no
// further peak can be completed.
//
// Returns the node index the leaf itself was stored at.
func addHashedLeaf(store NodeStore, hasher hash.Hash, leafHash hashvec.Hash) (uint64, error) {
	leafIndex := store.Len()
	if _, err := store.Append(leafHash); err != nil {
		return 0, err
	}

	i := store.Len() // the mmr size after the append just made
	height := uint64(0)
	for IndexHeight(i) > height {
		iLeft := i - (uint64(2) << height)
		iRight := i - 1

		left, err := store.GetNode(iLeft)
		if err != nil {
			return 0, err
		}
		right, err := store.GetNode(iRight)
		if err != nil {
			return 0, err
		}

		// Interior nodes commit to their own position so that two
		// structurally identical subtrees at different offsets never hash
		// the same.
		parent := HashPosPair(hasher, i+1, left.Bytes(), right.Bytes())
		if _, err := store.Append(hashvec.FromBytes(parent)); err != nil {
			return 0, err
		}

		i = store.Len()
		height++
	}
	return leafIndex, nil
}
