package mmr

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/pyezk/tari-1/hashvec"
)

// Engine is the append-only MMR over a NodeStore. It has no notion of
// deletion — that is layered on top by the mutablemmr package — Engine only
// ever answers questions about the raw, append-only node sequence.
type Engine struct {
	store  NodeStore
	hashFn func() hash.Hash
}

// NewEngine builds an Engine over store using hashFn to construct a fresh
// hash.Hash for every hashing operation. A nil hashFn defaults to SHA-256,
// matching the 256-bit hash width hashvec.Hash is sized for.
func NewEngine(store NodeStore, hashFn func() hash.Hash) *Engine {
	if hashFn == nil {
		hashFn = sha256.New
	}
	return &Engine{store: store, hashFn: hashFn}
}

// PushLeaf appends a leaf and backfills whatever interior nodes its addition
// completes. It returns the node index the leaf was stored at.
func (e *Engine) PushLeaf(leafHash hashvec.Hash) (uint64, error) {
	return addHashedLeaf(e.store, e.hashFn(), leafHash)
}

// NodeCount returns the total number of nodes (leaves and interior) stored.
func (e *Engine) NodeCount() uint64 {
	return e.store.Len()
}

// LeafCount returns the number of leaves represented by the current node
// count.
func (e *Engine) LeafCount() uint64 {
	return LeafCount(e.store.Len())
}

// FetchNode returns the raw node hash at pos.
func (e *Engine) FetchNode(pos uint64) (hashvec.Hash, error) {
	if pos >= e.store.Len() {
		return hashvec.Hash{}, fmt.Errorf("%w: node %d (mmr size %d)", ErrOutOfRange, pos, e.store.Len())
	}
	return e.store.GetNode(pos)
}

// Peaks returns the current mountain peak hashes, highest peak first.
func (e *Engine) Peaks() ([]hashvec.Hash, error) {
	return e.peaksAt(e.store.Len())
}

func (e *Engine) peaksAt(mmrSize uint64) ([]hashvec.Hash, error) {
	positions := Peaks(mmrSize)
	hashes := make([]hashvec.Hash, 0, len(positions))
	for _, pos := range positions {
		v, err := e.store.GetNode(pos - 1)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, v)
	}
	return hashes, nil
}

// MerkleRoot returns the deterministic bagging of the current peaks. An
// empty MMR's root is the hash of the empty input.
func (e *Engine) MerkleRoot() (hashvec.Hash, error) {
	peaks, err := e.Peaks()
	if err != nil {
		return hashvec.Hash{}, err
	}
	return bagPeaks(e.hashFn(), peaks), nil
}

// InclusionProof produces a MerkleProof for the leaf at leafIndex against
// the current MMR state.
func (e *Engine) InclusionProof(leafIndex uint64) (*MerkleProof, error) {
	mmrSize := e.store.Len()
	nodeIndex := MMRIndex(leafIndex)
	if nodeIndex >= mmrSize {
		return nil, fmt.Errorf("%w: leaf %d (mmr size %d)", ErrOutOfRange, leafIndex, mmrSize)
	}

	localPath, peakNodeIndex, err := localPeakProof(e.store, mmrSize, nodeIndex)
	if err != nil {
		return nil, err
	}

	positions := Peaks(mmrSize)
	peakIndex := -1
	for idx, pos := range positions {
		if pos-1 == peakNodeIndex {
			peakIndex = idx
			break
		}
	}
	if peakIndex < 0 {
		return nil, fmt.Errorf("%w: leaf %d did not resolve to a known peak", ErrInvalidMMRSize, leafIndex)
	}

	otherPeaks := make([]hashvec.Hash, 0, len(positions)-1)
	for idx, pos := range positions {
		if idx == peakIndex {
			continue
		}
		v, err := e.store.GetNode(pos - 1)
		if err != nil {
			return nil, err
		}
		otherPeaks = append(otherPeaks, v)
	}

	return &MerkleProof{
		LeafIndex:  leafIndex,
		NodeIndex:  nodeIndex,
		MMRSize:    mmrSize,
		PeakIndex:  peakIndex,
		LocalPath:  localPath,
		OtherPeaks: otherPeaks,
	}, nil
}

// VerifyInclusion reports whether proof demonstrates that leafHash is
// included under root.
func (e *Engine) VerifyInclusion(root hashvec.Hash, leafHash hashvec.Hash, proof *MerkleProof) bool {
	return VerifyInclusion(e.hashFn(), root, leafHash, proof)
}

// VerifyInclusion is the stateless counterpart of Engine.VerifyInclusion,
// for verifiers that only hold the proof and the published root.
func VerifyInclusion(hasher hash.Hash, root hashvec.Hash, leafHash hashvec.Hash, proof *MerkleProof) bool {
	if proof == nil {
		return false
	}
	if proof.PeakIndex < 0 || proof.PeakIndex > len(proof.OtherPeaks) {
		return false
	}

	localPeak := includedRoot(hasher, proof.NodeIndex, leafHash, proof.LocalPath)

	peaks := make([]hashvec.Hash, 0, len(proof.OtherPeaks)+1)
	peaks = append(peaks, proof.OtherPeaks[:proof.PeakIndex]...)
	peaks = append(peaks, localPeak)
	peaks = append(peaks, proof.OtherPeaks[proof.PeakIndex:]...)

	candidate := bagPeaks(hasher, peaks)
	return candidate == root
}
