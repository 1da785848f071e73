package hashvec

import (
	"errors"
	"sync"
)

// ErrAccessError is returned when a Vector's backing storage cannot be
// reached. The in-memory Vector returns it only from GetNode, for an index
// past the end; it is part of the type's contract so that alternative,
// lock-or-disk backed implementations of the same shape can surface a
// uniform error to callers built against this package.
var ErrAccessError = errors.New("hashvec: access error")

// Vector is an ordered, append-only sequence of fixed-width hashes. It is
// safe for concurrent use: readers take the shared lock, Push and Truncate
// take the exclusive lock. A Vector is cheap to share — callers needing a
// shared, reference-counted handle should share the *Vector pointer itself,
// exactly as the mmr cache and the owning per-tree ledger do.
type Vector struct {
	mu     sync.RWMutex
	hashes []Hash
}

// New returns an empty Vector.
func New() *Vector {
	return &Vector{}
}

// Push appends a hash and returns the index it was stored at.
func (v *Vector) Push(h Hash) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hashes = append(v.hashes, h)
	return uint64(len(v.hashes) - 1), nil
}

// Get returns the hash at index, or false if index is past the end.
func (v *Vector) Get(index uint64) (Hash, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if index >= uint64(len(v.hashes)) {
		return Hash{}, false
	}
	return v.hashes[index], true
}

// Len returns the number of hashes currently stored.
func (v *Vector) Len() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return uint64(len(v.hashes))
}

// Truncate drops every hash at or beyond newLen. Truncating past the current
// length, or to zero, is a no-op/fully-permitted shrink respectively — it
// never grows the vector.
func (v *Vector) Truncate(newLen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if newLen >= uint64(len(v.hashes)) {
		return
	}
	v.hashes = v.hashes[:newLen]
}

// Iter calls f with every stored hash, in order, stopping early if f returns
// false.
func (v *Vector) Iter(f func(index uint64, h Hash) bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for i, h := range v.hashes {
		if !f(uint64(i), h) {
			return
		}
	}
}

// Clone returns an independent Vector holding a copy of the current
// contents. Used by callers that need to evaluate a hypothetical mutation
// (additional pushes, deletions) without disturbing the live store — see
// store.Backend.CalculateMmrRoot.
func (v *Vector) Clone() *Vector {
	v.mu.RLock()
	defer v.mu.RUnlock()
	hashes := make([]Hash, len(v.hashes))
	copy(hashes, v.hashes)
	return &Vector{hashes: hashes}
}

// Append implements the mmr.NodeStore contract used by the mmr engine: it is
// indistinguishable from Push except for the error return, which lets a
// Vector be used directly wherever mmr.NodeStore is expected.
func (v *Vector) Append(h Hash) (uint64, error) {
	return v.Push(h)
}

// GetNode implements the error-returning half of mmr.NodeStore.
func (v *Vector) GetNode(index uint64) (Hash, error) {
	h, ok := v.Get(index)
	if !ok {
		return Hash{}, ErrAccessError
	}
	return h, nil
}
