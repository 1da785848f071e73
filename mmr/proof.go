package mmr

import (
	"hash"

	"github.com/pyezk/tari-1/hashvec"
)

// MerkleProof is everything an external verifier needs to show that a leaf
// is included under a published root: the witness path from the leaf up to
// its local mountain peak, which peak that is (PeakIndex, into the
// highest-first Peaks ordering), the other peaks at the time the proof was
// produced, and the MMR size that ordering was computed against.
type MerkleProof struct {
	LeafIndex  uint64
	NodeIndex  uint64
	MMRSize    uint64
	PeakIndex  int
	LocalPath  []hashvec.Hash
	OtherPeaks []hashvec.Hash
}

// localPeakProof climbs from node index i to the peak of the mountain that
// contains it, collecting the sibling value needed at each step. It returns
// the witness path and the node index of the peak reached.
func localPeakProof(store NodeStore, mmrSize uint64, i uint64) ([]hashvec.Hash, uint64, error) {
	var proof []hashvec.Hash
	height := IndexHeight(i)

	for i < mmrSize {
		curHeight := IndexHeight(i)
		nextHeight := IndexHeight(i + 1)

		var iSibling uint64
		if nextHeight > curHeight {
			// i is the right child; its sibling sits behind it.
			iSibling = i - SiblingOffset(height)
			if iSibling >= mmrSize {
				break
			}
			v, err := store.GetNode(iSibling)
			if err != nil {
				return nil, 0, err
			}
			proof = append(proof, v)
			i++
		} else {
			// i is the left child; its sibling sits ahead of it.
			iSibling = i + SiblingOffset(height)
			if iSibling >= mmrSize {
				break
			}
			v, err := store.GetNode(iSibling)
			if err != nil {
				return nil, 0, err
			}
			proof = append(proof, v)
			i += ParentOffset(height)
		}
		height++
	}
	return proof, i, nil
}

// includedRoot replays the same position-committed combination add.go uses
// when backfilling, reconstructing the local peak hash from a leaf value and
// its witness path.
func includedRoot(hasher hash.Hash, i uint64, leafHash hashvec.Hash, proof []hashvec.Hash) hashvec.Hash {
	root := leafHash
	g := IndexHeight(i)

	for _, sibling := range proof {
		if IndexHeight(i+1) > g {
			i = i + 1
			root = hashvec.FromBytes(HashPosPair(hasher, i+1, sibling.Bytes(), root.Bytes()))
		} else {
			i = i + ParentOffset(g)
			root = hashvec.FromBytes(HashPosPair(hasher, i+1, root.Bytes(), sibling.Bytes()))
		}
		g++
	}
	return root
}

// bagPeaks folds an ordered peak list (highest peak first, as returned by
// Peaks) into the single accumulator root the backend façade exposes.
// Folding combines the two right-most peaks first and keeps going until one
// hash remains, so the result is a pure function of the peak order. An empty
// peak list (the empty MMR) bags to the hash of the empty input.
func bagPeaks(hasher hash.Hash, peaks []hashvec.Hash) hashvec.Hash {
	if len(peaks) == 0 {
		hasher.Reset()
		return hashvec.FromBytes(hasher.Sum(nil))
	}

	folded := append([]hashvec.Hash(nil), peaks...)
	for len(folded) > 1 {
		right := folded[len(folded)-1]
		left := folded[len(folded)-2]
		folded = folded[:len(folded)-2]

		hasher.Reset()
		hasher.Write(left.Bytes())
		hasher.Write(right.Bytes())
		folded = append(folded, hashvec.FromBytes(hasher.Sum(nil)))
	}
	return folded[0]
}
