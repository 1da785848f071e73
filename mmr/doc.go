// Package mmr implements the append-only Merkle Mountain Range used to
// commit UTXO, kernel, and range-proof leaves.
//
// An MMR is stored as a single, position-ordered sequence of node hashes:
// leaves and the interior nodes that back-fill above them are interleaved in
// the same append-only store, exactly as they are produced. The canonical
// state of the structure is this sequence; peaks, roots, and proofs are all
// pure functions of it.
//
// Leaves are numbered separately from storage positions (0, 1, 2, ... in
// insertion order) because callers — the per-tree ledger above this package
// — only ever think in terms of leaves. MMRIndex converts a leaf ordinal to
// its position in the node sequence.
//
// The root is the "bagging" of the current mountain peaks into one hash, so
// that the backend façade can expose a single comparable Hash per tree
// rather than a variable-length accumulator. Proofs are produced and
// verified against that same bagged root.
package mmr
