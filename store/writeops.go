package store

import "github.com/pyezk/tari-1/ledger"

// OpKind tags which mutation a WriteOperation performs. Spec §6's write-op
// tag set — Insert/Delete/Spend/UnSpend/CreateMmrCheckpoint/RewindMmr — maps
// one-for-one onto these.
type OpKind int

const (
	OpInsertMetadata OpKind = iota
	OpInsertBlockHeader
	OpInsertUnspentOutput
	OpInsertTransactionKernel
	OpInsertOrphanBlock
	OpDelete
	OpSpend
	OpUnspend
	OpCreateMmrCheckpoint
	OpRewindMmr
)

// WriteOperation is one entry in the batch Backend.Write applies under its
// single exclusive lock. Exactly the fields relevant to Kind are meaningful,
// the same tagged-union shape as DbKey and DbValue.
type WriteOperation struct {
	Kind OpKind

	MetadataField MetadataField
	MetadataValue ChainMetadata

	Header BlockHeader

	Output    UnspentOutput
	Kernel    TransactionKernel
	UpdateMmr bool

	Orphan OrphanBlock

	DeleteKey DbKey

	SpendHash   Hash
	UnspendHash Hash

	Tree      ledger.Tree
	StepsBack uint64
}

func InsertMetadata(field MetadataField, value ChainMetadata) WriteOperation {
	return WriteOperation{Kind: OpInsertMetadata, MetadataField: field, MetadataValue: value}
}

func InsertBlockHeader(h BlockHeader) WriteOperation {
	return WriteOperation{Kind: OpInsertBlockHeader, Header: h}
}

func InsertUnspentOutput(out UnspentOutput, updateMmr bool) WriteOperation {
	return WriteOperation{Kind: OpInsertUnspentOutput, Output: out, UpdateMmr: updateMmr}
}

func InsertTransactionKernel(k TransactionKernel, updateMmr bool) WriteOperation {
	return WriteOperation{Kind: OpInsertTransactionKernel, Kernel: k, UpdateMmr: updateMmr}
}

func InsertOrphanBlock(b OrphanBlock) WriteOperation {
	return WriteOperation{Kind: OpInsertOrphanBlock, Orphan: b}
}

func Delete(key DbKey) WriteOperation {
	return WriteOperation{Kind: OpDelete, DeleteKey: key}
}

func Spend(hash Hash) WriteOperation {
	return WriteOperation{Kind: OpSpend, SpendHash: hash}
}

func UnSpend(hash Hash) WriteOperation {
	return WriteOperation{Kind: OpUnspend, UnspendHash: hash}
}

func CreateMmrCheckpoint(tree ledger.Tree) WriteOperation {
	return WriteOperation{Kind: OpCreateMmrCheckpoint, Tree: tree}
}

func RewindMmr(tree ledger.Tree, stepsBack uint64) WriteOperation {
	return WriteOperation{Kind: OpRewindMmr, Tree: tree, StepsBack: stepsBack}
}
