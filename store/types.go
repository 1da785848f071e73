package store

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/pyezk/tari-1/hashvec"
)

// Hash is the commitment-level identity this package deals in — a 32-byte
// digest of a UTXO commitment, a kernel, a range proof, or a block header.
type Hash = hashvec.Hash

// PowAlgo names the proof-of-work algorithm a BlockHeader claims to satisfy.
// The core never verifies PoW (spec §1 Non-goals); it only records and
// filters on it for fetch_target_difficulties.
type PowAlgo int

const (
	PowAlgoUnknown PowAlgo = iota
	PowAlgoSHA3
	PowAlgoMonero
)

// UnspentOutput is the full record a UTXO (or, once spent, an STXO) carries.
// Index is the leaf position the output's range-proof hash occupies in the
// RangeProof tree — resolved once at insertion time (spec §4.3) and stable
// across Spend/UnSpend (spec §8 property 4).
type UnspentOutput struct {
	Commitment     Hash
	RangeProofHash Hash
	Value          uint64
	Index          uint64
}

// Hash returns the identity the UTXO/STXO maps are keyed by.
func (o UnspentOutput) Hash() Hash { return o.Commitment }

// TransactionKernel is a transaction's signature/fee record, committed into
// its own MMR. Index is the leaf position it occupies in the Kernel tree.
type TransactionKernel struct {
	Excess     Hash
	Fee        uint64
	LockHeight uint64
	Index      uint64
}

// Hash returns the identity the Kernels map is keyed by.
func (k TransactionKernel) Hash() Hash {
	h := sha256.New()
	h.Write(k.Excess.Bytes())
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], k.Fee)
	binary.LittleEndian.PutUint64(buf[8:16], k.LockHeight)
	h.Write(buf[:])
	return hashvec.FromBytes(h.Sum(nil))
}

// BlockHeader is the portion of a block the chain-storage core keeps by
// height. Validation of its contents (PoW, difficulty adjustment) is out of
// scope (spec §1 Non-goals); the core only stores and indexes it.
type BlockHeader struct {
	Height     uint64
	PrevHash   Hash
	Timestamp  time.Time
	PowAlgo    PowAlgo
	Difficulty uint64
}

// Hash returns the header's identity, used both as the BlockHash index key
// and as the leaf pushed into no tree (headers are not MMR-committed in this
// spec — only UTXO, Kernel, and RangeProof are).
func (h BlockHeader) Hash() Hash {
	hasher := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h.Height)
	hasher.Write(buf[:])
	hasher.Write(h.PrevHash.Bytes())
	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, uint64(h.Timestamp.UnixNano()))
	hasher.Write(ts)
	binary.LittleEndian.PutUint64(buf[:], h.Difficulty)
	hasher.Write(buf[:])
	return hashvec.FromBytes(hasher.Sum(nil))
}

// OrphanBlock is a full block retained by hash without being part of the
// canonical chain (spec §3 "Orphan block"). ID is a log-correlation
// identifier assigned at insert time, mirroring how mmrtesting/massifs use
// google/uuid for tenant and test-run identifiers.
type OrphanBlock struct {
	ID     uuid.UUID
	Header BlockHeader
	Body   []byte
}

// Hash returns the identity the Orphans map is keyed by.
func (b OrphanBlock) Hash() Hash { return b.Header.Hash() }

// ChainMetadata is the small keyed map spec §3 describes: chain height, best
// block hash, accumulated work, and the pruning horizon in effect. Fields
// are pointers because each is independently optional until the first
// Insert(Metadata(...)) that sets it — fetch_metadata on a fresh backend
// returns a ChainMetadata with every optional field nil.
type ChainMetadata struct {
	HeightOfLongestChain *uint64
	BestBlockHash        *Hash
	AccumulatedWork      *big.Int
	PruningHorizon       uint64
}

// Clone returns a value-independent copy, so callers reading fetched
// metadata cannot mutate the backend's own copy through a returned pointer.
func (m ChainMetadata) Clone() ChainMetadata {
	out := m
	if m.HeightOfLongestChain != nil {
		h := *m.HeightOfLongestChain
		out.HeightOfLongestChain = &h
	}
	if m.BestBlockHash != nil {
		h := *m.BestBlockHash
		out.BestBlockHash = &h
	}
	if m.AccumulatedWork != nil {
		out.AccumulatedWork = new(big.Int).Set(m.AccumulatedWork)
	}
	return out
}
