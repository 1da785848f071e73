package store

// DbKeyKind tags which map/table a DbKey addresses, exactly as ledger.Tree
// tags which commitment tree a tree-scoped operation targets.
type DbKeyKind int

const (
	KeyMetadata DbKeyKind = iota
	KeyBlockHeader
	KeyBlockHash
	KeyUnspentOutput
	KeySpentOutput
	KeyTransactionKernel
	KeyOrphanBlock
)

func (k DbKeyKind) String() string {
	switch k {
	case KeyMetadata:
		return "Metadata"
	case KeyBlockHeader:
		return "BlockHeader"
	case KeyBlockHash:
		return "BlockHash"
	case KeyUnspentOutput:
		return "UnspentOutput"
	case KeySpentOutput:
		return "SpentOutput"
	case KeyTransactionKernel:
		return "TransactionKernel"
	case KeyOrphanBlock:
		return "OrphanBlock"
	default:
		return "Unknown"
	}
}

// MetadataField names one of ChainMetadata's independently settable fields.
type MetadataField int

const (
	FieldHeightOfLongestChain MetadataField = iota
	FieldBestBlockHash
	FieldAccumulatedWork
	FieldPruningHorizon
)

// DbKey is the tagged-union lookup key spec §6's façade operates on: exactly
// one of its fields is meaningful, selected by Kind.
type DbKey struct {
	Kind          DbKeyKind
	Hash          Hash
	Height        uint64
	MetadataField MetadataField
}

func MetadataKey(field MetadataField) DbKey {
	return DbKey{Kind: KeyMetadata, MetadataField: field}
}

func BlockHeaderKey(height uint64) DbKey {
	return DbKey{Kind: KeyBlockHeader, Height: height}
}

func BlockHashKey(hash Hash) DbKey {
	return DbKey{Kind: KeyBlockHash, Hash: hash}
}

func UnspentOutputKey(hash Hash) DbKey {
	return DbKey{Kind: KeyUnspentOutput, Hash: hash}
}

func SpentOutputKey(hash Hash) DbKey {
	return DbKey{Kind: KeySpentOutput, Hash: hash}
}

func TransactionKernelKey(hash Hash) DbKey {
	return DbKey{Kind: KeyTransactionKernel, Hash: hash}
}

func OrphanBlockKey(hash Hash) DbKey {
	return DbKey{Kind: KeyOrphanBlock, Hash: hash}
}

// DbValue is the tagged-union fetch result, mirroring DbKey: exactly one
// field is populated, matching the Kind of the key that produced it.
type DbValue struct {
	Kind              DbKeyKind
	Metadata          *ChainMetadata
	BlockHeader       *BlockHeader
	BlockHash         *uint64
	UnspentOutput     *UnspentOutput
	SpentOutput       *UnspentOutput
	TransactionKernel *TransactionKernel
	OrphanBlock       *OrphanBlock
}
