package ledger

import "errors"

// ErrPruned is returned when a query touches a leaf that has fallen outside
// the ledger's pruning horizon: the node data may still be resident (this
// implementation never reclaims it, see DESIGN.md), but it is no longer a
// contract-honored answer, exactly as if it had been discarded.
var ErrPruned = errors.New("ledger: leaf outside pruning horizon")

// ErrRangeProofNotFound is returned when a UTXO insertion cannot locate its
// range-proof hash in the range-proof tree's checkpoint history. In this
// implementation it never fires in practice — insertion always pushes the
// range-proof hash in the same call before resolving its index — but it is
// kept as an explicit, typed error rather than a silent no-op per the open
// question this scenario raises.
var ErrRangeProofNotFound = errors.New("ledger: range-proof hash not present in any checkpoint")

// ErrOutOfRange is returned when a checkpoint height is requested beyond the
// committed checkpoint sequence.
var ErrOutOfRange = errors.New("ledger: checkpoint height out of range")
