package mutablemmr

import (
	"crypto/sha256"
	"hash"

	"github.com/pyezk/tari-1/hashvec"
	"github.com/pyezk/tari-1/mmr"
)

// MutableMmr pairs an append-only mmr.Engine with a deletion bitmap. Leaves
// are never removed from the underlying engine — "deletion" only ever
// affects the root and proof-verification outcome for deletable trees.
type MutableMmr struct {
	engine    *mmr.Engine
	deleted   *Bitmap
	hashFn    func() hash.Hash
	deletable bool
}

// New builds a MutableMmr over store. deletable selects whether Delete is
// permitted at all — non-deletable trees (Kernel, RangeProof) always report
// Delete as a no-op and MerkleRootWithDeletions equal to the plain root.
func New(store mmr.NodeStore, hashFn func() hash.Hash, deletable bool) *MutableMmr {
	if hashFn == nil {
		hashFn = sha256.New
	}
	return &MutableMmr{
		engine:    mmr.NewEngine(store, hashFn),
		deleted:   NewBitmap(),
		hashFn:    hashFn,
		deletable: deletable,
	}
}

// Engine exposes the underlying append-only engine for operations (push,
// proof, raw node fetch) that deletion does not affect.
func (m *MutableMmr) Engine() *mmr.Engine { return m.engine }

// Deletable reports whether this tree supports Delete at all.
func (m *MutableMmr) Deletable() bool { return m.deletable }

// Delete marks leafIndex logically removed. It is idempotent: deleting an
// already-deleted or out-of-range leaf returns false without error, mirroring
// the "fails quietly, signals via bool" contract of UTXO spend bookkeeping
// layered on top.
func (m *MutableMmr) Delete(leafIndex uint64) bool {
	if !m.deletable {
		return false
	}
	if leafIndex >= m.engine.LeafCount() {
		return false
	}
	already := m.deleted.Set(leafIndex)
	return !already
}

// IsDeleted reports whether leafIndex has been marked deleted.
func (m *MutableMmr) IsDeleted(leafIndex uint64) bool {
	return m.deletable && m.deleted.IsSet(leafIndex)
}

// CloneWithStore builds an independent MutableMmr sharing this one's
// deletion bitmap contents (copied, not aliased) but reading from store
// instead of the original node store. Callers use this to evaluate
// hypothetical pushes/deletes against a throwaway copy of both the node
// store and the bitmap without touching the live tree.
func (m *MutableMmr) CloneWithStore(store mmr.NodeStore) *MutableMmr {
	return &MutableMmr{
		engine:    mmr.NewEngine(store, m.hashFn),
		deleted:   m.deleted.Clone(),
		hashFn:    m.hashFn,
		deletable: m.deletable,
	}
}

// Compress normalizes the deletion bitmap. Must be called before any root or
// proof query so that two mutable MMRs in the same logical state always
// produce the same root.
func (m *MutableMmr) Compress() {
	m.deleted.Compress()
}

// MMROnlyRoot returns the root ignoring deletions — the value a light client
// replaying only the checkpoint stream (and not the deletion bitmap) would
// reproduce.
func (m *MutableMmr) MMROnlyRoot() (hashvec.Hash, error) {
	return m.engine.MerkleRoot()
}

// MerkleRootWithDeletions is the user-facing root for deletable trees: the
// plain mmr root combined with the compressed deletion bitmap. For
// non-deletable trees it is identical to MMROnlyRoot.
func (m *MutableMmr) MerkleRootWithDeletions() (hashvec.Hash, error) {
	base, err := m.engine.MerkleRoot()
	if err != nil {
		return hashvec.Hash{}, err
	}
	if !m.deletable {
		return base, nil
	}

	m.Compress()
	hasher := m.hashFn()
	hasher.Write(base.Bytes())
	hasher.Write(m.deleted.Bytes())
	return hashvec.FromBytes(hasher.Sum(nil)), nil
}
