// Package store implements the backend façade spec §6 describes: the single
// entry point through which every other collaborator reads chain state and
// submits batched writes. Backend is the in-memory reference implementation;
// store/badgerstore provides a persistent sibling behind the same shape.
package store

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sync"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"

	"github.com/pyezk/tari-1/hashvec"
	"github.com/pyezk/tari-1/ledger"
	"github.com/pyezk/tari-1/mmr"
)

// Config is the small struct-of-options constructors take, following
// massifs.MassifCommitterConfig's shape.
type Config struct {
	PruningHorizon uint64
	HashFn         func() hash.Hash
}

// Option mutates a Config during NewBackend, mirroring massifs.Option's
// functional-option idiom.
type Option func(*Config)

// WithPruningHorizon sets the number of most recent checkpoints per tree
// whose leaves remain provable. Pass ledger.PruningHorizonUnbounded (the
// default) to never prune.
func WithPruningHorizon(horizon uint64) Option {
	return func(c *Config) { c.PruningHorizon = horizon }
}

// WithHashFn overrides the hash function used by every tree. Defaults to
// SHA-256, matching hashvec.Size's 32-byte width.
func WithHashFn(fn func() hash.Hash) Option {
	return func(c *Config) { c.HashFn = fn }
}

// state is the data a Backend and all of its clones share: one exclusive
// lock guarding the three per-tree ledgers, the output sets, and metadata
// (spec §5). Cloning a Backend copies only the outer handle, never this
// struct, so mutations through any clone are visible through all of them.
type state struct {
	mu sync.RWMutex

	ledgers map[ledger.Tree]*ledger.Ledger
	out     *outputs
	meta    ChainMetadata
}

// Backend is the reference in-memory implementation of the chain-storage
// façade. It is deliberately simple — spec §5 trades throughput for
// simplicity here, on the understanding that a persistent backend is a
// drop-in replacement behind the same exported surface.
type Backend struct {
	log     logger.Logger
	metrics *Metrics
	st      *state
}

// NewBackend returns an empty Backend. log is required; pass logger.Sugar
// (or a service-scoped logger via WithServiceName) if the caller has no
// specific logger of its own.
func NewBackend(log logger.Logger, opts ...Option) *Backend {
	cfg := Config{PruningHorizon: ledger.PruningHorizonUnbounded, HashFn: sha256.New}
	for _, o := range opts {
		o(&cfg)
	}

	st := &state{
		ledgers: map[ledger.Tree]*ledger.Ledger{
			ledger.Utxo:       ledger.New(ledger.Utxo, cfg.HashFn, cfg.PruningHorizon, log),
			ledger.Kernel:     ledger.New(ledger.Kernel, cfg.HashFn, cfg.PruningHorizon, log),
			ledger.RangeProof: ledger.New(ledger.RangeProof, cfg.HashFn, cfg.PruningHorizon, log),
		},
		out:  newOutputs(),
		meta: ChainMetadata{PruningHorizon: cfg.PruningHorizon},
	}
	return &Backend{log: log, st: st}
}

// WithMetrics attaches a Metrics collector, returning the same Backend for
// chaining at construction time.
func (b *Backend) WithMetrics(m *Metrics) *Backend {
	b.metrics = m
	return b
}

// Clone returns a handle sharing this Backend's lock and data (spec §5:
// "the backend is clone-able; all clones share the same underlying lock and
// data"). Mutating through the clone is visible through the original and
// vice versa.
func (b *Backend) Clone() *Backend {
	return &Backend{log: b.log, metrics: b.metrics, st: b.st}
}

func (b *Backend) ledger(tree ledger.Tree) *ledger.Ledger {
	return b.st.ledgers[tree]
}

// Write applies ops in order under the backend's single exclusive lock.
// Semantics are best-effort atomic (spec §4.5, §9): if the batch returns an
// error, the ops before the failing one have already been applied and the
// caller must refresh any state it cached.
func (b *Backend) Write(ops []WriteOperation) error {
	b.st.mu.Lock()
	defer b.st.mu.Unlock()

	start := time.Now()
	for i, op := range ops {
		if err := b.applyOp(op); err != nil {
			b.metrics.observeWrite(time.Since(start), false)
			return fmt.Errorf("write op %d (%v): %w", i, op.Kind, err)
		}
	}
	b.metrics.observeWrite(time.Since(start), true)
	return nil
}

func (b *Backend) applyOp(op WriteOperation) error {
	switch op.Kind {
	case OpInsertMetadata:
		b.applyMetadata(op.MetadataField, op.MetadataValue)
		return nil
	case OpInsertBlockHeader:
		return b.st.out.insertHeader(op.Header)
	case OpInsertUnspentOutput:
		return b.insertUnspentOutput(op.Output, op.UpdateMmr)
	case OpInsertTransactionKernel:
		return b.insertTransactionKernel(op.Kernel, op.UpdateMmr)
	case OpInsertOrphanBlock:
		orphan := op.Orphan
		if orphan.ID == uuid.Nil {
			orphan.ID = uuid.New()
		}
		return b.st.out.insertOrphan(orphan)
	case OpDelete:
		b.applyDelete(op.DeleteKey)
		return nil
	case OpSpend:
		return b.applySpend(op.SpendHash)
	case OpUnspend:
		_, err := b.st.out.unspend(op.UnspendHash)
		return err
	case OpCreateMmrCheckpoint:
		b.ledger(op.Tree).CreateCheckpoint()
		return nil
	case OpRewindMmr:
		l := b.ledger(op.Tree)
		// A spend whose deletion the rewind drops is undone in the output sets.
		deleted := make(map[Hash]bool)
		for h, out := range b.st.out.stxos {
			deleted[h] = op.Tree == ledger.Utxo && l.IsDeleted(out.Index)
		}
		if err := l.Rewind(op.StepsBack); err != nil {
			return err
		}
		for h, out := range b.st.out.stxos {
			if deleted[h] && !l.IsDeleted(out.Index) {
				b.st.out.unspend(h)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown write-op kind %v", ErrInvalidOperation, op.Kind)
	}
}

// insertUnspentOutput implements spec §3/§4.3's Insert(UnspentOutput): when
// updateMmr is set, it pushes the range-proof hash first, resolves its leaf
// index by the same scan ledger.Ledger.ResolveLeafIndex performs for any
// other caller (the first position holding that hash, which is an earlier
// one if the same hash was pushed before), and only then pushes the UTXO's own
// commitment hash — so a failed range-proof resolution never leaves a
// half-pushed UTXO tree behind.
func (b *Backend) insertUnspentOutput(out UnspentOutput, updateMmr bool) error {
	if updateMmr {
		if _, err := b.ledger(ledger.RangeProof).PushLeaf(out.RangeProofHash); err != nil {
			return err
		}
		idx, ok := b.ledger(ledger.RangeProof).ResolveLeafIndex(out.RangeProofHash)
		if !ok {
			return fmt.Errorf("%w: %w for commitment %s", ErrInvalidOperation, ledger.ErrRangeProofNotFound, out.Commitment)
		}
		out.Index = idx
	}

	if err := b.st.out.insertUTXO(out); err != nil {
		return err
	}

	if updateMmr {
		if _, err := b.ledger(ledger.Utxo).PushLeaf(out.Commitment); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) insertTransactionKernel(k TransactionKernel, updateMmr bool) error {
	if updateMmr {
		idx, err := b.ledger(ledger.Kernel).PushLeaf(k.Excess)
		if err != nil {
			return err
		}
		k.Index = idx
	}
	return b.st.out.insertKernel(k)
}

func (b *Backend) applyDelete(key DbKey) {
	switch key.Kind {
	case KeyUnspentOutput, KeySpentOutput:
		b.st.out.deleteUTXO(key.Hash)
	case KeyTransactionKernel:
		b.st.out.deleteKernel(key.Hash)
	case KeyBlockHeader:
		b.st.out.deleteHeader(key.Height)
	case KeyOrphanBlock:
		b.st.out.deleteOrphan(key.Hash)
	case KeyBlockHash, KeyMetadata:
		// BlockHash is only ever removed as a side effect of deleting the
		// header that produced it; Metadata has no standalone delete.
	}
}

// applySpend moves hash from the UTXO map to the STXO map and, on success,
// marks its leaf index deleted in the working UTXO checkpoint (spec §4.4).
func (b *Backend) applySpend(hash Hash) error {
	out, err := b.st.out.spend(hash)
	if err != nil {
		return err
	}
	b.ledger(ledger.Utxo).Delete(out.Index)
	return nil
}

func (b *Backend) applyMetadata(field MetadataField, value ChainMetadata) {
	switch field {
	case FieldHeightOfLongestChain:
		b.st.meta.HeightOfLongestChain = value.HeightOfLongestChain
	case FieldBestBlockHash:
		b.st.meta.BestBlockHash = value.BestBlockHash
	case FieldAccumulatedWork:
		b.st.meta.AccumulatedWork = value.AccumulatedWork
	case FieldPruningHorizon:
		b.st.meta.PruningHorizon = value.PruningHorizon
	}
}

// Fetch performs a typed lookup, returning nil if key names nothing present.
func (b *Backend) Fetch(key DbKey) (*DbValue, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch")

	switch key.Kind {
	case KeyMetadata:
		meta := b.st.meta.Clone()
		return &DbValue{Kind: KeyMetadata, Metadata: &meta}, nil
	case KeyBlockHeader:
		h, ok := b.st.out.headers[key.Height]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeyBlockHeader, BlockHeader: &h}, nil
	case KeyBlockHash:
		height, ok := b.st.out.blockHashes[key.Hash]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeyBlockHash, BlockHash: &height}, nil
	case KeyUnspentOutput:
		out, ok := b.st.out.utxos[key.Hash]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeyUnspentOutput, UnspentOutput: &out}, nil
	case KeySpentOutput:
		out, ok := b.st.out.stxos[key.Hash]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeySpentOutput, SpentOutput: &out}, nil
	case KeyTransactionKernel:
		k, ok := b.st.out.kernels[key.Hash]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeyTransactionKernel, TransactionKernel: &k}, nil
	case KeyOrphanBlock:
		o, ok := b.st.out.orphans[key.Hash]
		if !ok {
			return nil, nil
		}
		return &DbValue{Kind: KeyOrphanBlock, OrphanBlock: &o}, nil
	default:
		return nil, fmt.Errorf("%w: unknown key kind %v", ErrInvalidOperation, key.Kind)
	}
}

// Contains reports whether key names a present entry. Metadata keys always
// return true (spec §4.6).
func (b *Backend) Contains(key DbKey) (bool, error) {
	if key.Kind == KeyMetadata {
		return true, nil
	}
	v, err := b.Fetch(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// FetchMmrRoot returns the deletion-aware root of tree.
func (b *Backend) FetchMmrRoot(tree ledger.Tree) (Hash, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_root")
	return b.ledger(tree).MerkleRoot()
}

// FetchMmrOnlyRoot returns tree's root ignoring any deletions.
func (b *Backend) FetchMmrOnlyRoot(tree ledger.Tree) (Hash, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_only_root")
	return b.ledger(tree).MMROnlyRoot()
}

// CalculateMmrRoot answers "what would tree's root be if additions were
// pushed and deletions removed?" without persisting anything (spec §4.6).
// deletions is only meaningful for the Utxo tree, where each hash is
// resolved to its current leaf index via the live UTXO map; passing
// deletions for any other tree is a query error.
func (b *Backend) CalculateMmrRoot(tree ledger.Tree, additions []Hash, deletions []Hash) (Hash, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("calculate_mmr_root")

	if len(deletions) > 0 && tree != ledger.Utxo {
		return Hash{}, fmt.Errorf("%w: deletions only apply to the Utxo tree", ErrInvalidQuery)
	}

	snap := b.ledger(tree).Snapshot()
	for _, h := range additions {
		if _, err := snap.PushLeaf(hashvec.Hash(h)); err != nil {
			return Hash{}, err
		}
	}
	for _, h := range deletions {
		out, ok := b.st.out.utxos[h]
		if !ok {
			return Hash{}, fmt.Errorf("%w: hypothetical deletion of unknown UTXO %s", ErrInvalidQuery, h)
		}
		snap.Delete(out.Index)
	}
	return snap.MerkleRoot()
}

// FetchMmrProof returns an inclusion proof for leafPos in tree.
func (b *Backend) FetchMmrProof(tree ledger.Tree, leafPos uint64) (*mmr.MerkleProof, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_proof")
	return b.ledger(tree).InclusionProof(leafPos)
}

// FetchCheckpoint returns the sealed checkpoint at height in tree.
func (b *Backend) FetchCheckpoint(tree ledger.Tree, height uint64) (ledger.Checkpoint, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_checkpoint")
	return b.ledger(tree).CheckpointAt(height)
}

// FetchMmrNodeCount returns the accumulated leaf count as of checkpoint
// height in tree, clamped at the end of history, 0 if nothing is sealed.
func (b *Backend) FetchMmrNodeCount(tree ledger.Tree, height uint64) (uint64, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_node_count")
	return b.ledger(tree).NodeCountAt(height), nil
}

// NodeEntry is one raw node and its deletion flag, as fetched for peer
// synchronization (spec §4.6).
type NodeEntry struct {
	Hash    Hash
	Deleted bool
}

// FetchMmrNode returns the raw node hash at pos in tree, with its deletion
// flag (always false for interior nodes and non-deletable trees).
func (b *Backend) FetchMmrNode(tree ledger.Tree, pos uint64) (NodeEntry, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_node")

	h, deleted, err := b.ledger(tree).FetchNodeWithDeletionFlag(pos)
	if err != nil {
		return NodeEntry{}, err
	}
	return NodeEntry{Hash: h, Deleted: deleted}, nil
}

// FetchMmrNodes returns count consecutive node entries starting at pos.
func (b *Backend) FetchMmrNodes(tree ledger.Tree, pos uint64, count uint64) ([]NodeEntry, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_mmr_nodes")

	out := make([]NodeEntry, 0, count)
	l := b.ledger(tree)
	for i := uint64(0); i < count; i++ {
		h, deleted, err := l.FetchNodeWithDeletionFlag(pos + i)
		if err != nil {
			return nil, err
		}
		out = append(out, NodeEntry{Hash: h, Deleted: deleted})
	}
	return out, nil
}

// ForEachOrphan invokes f on every orphan block. Per spec §4.6, an error
// from f never stops the scan.
func (b *Backend) ForEachOrphan(f func(OrphanBlock) error) error {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	return b.st.out.forEachOrphan(f)
}

// OrphanCount reports how many blocks currently sit in the orphan pool.
func (b *Backend) OrphanCount() (int, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("orphan_count")
	return b.st.out.orphanCount(), nil
}

// ForEachKernel invokes f on every transaction kernel.
func (b *Backend) ForEachKernel(f func(TransactionKernel) error) error {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	return b.st.out.forEachKernel(f)
}

// ForEachHeader invokes f on every block header.
func (b *Backend) ForEachHeader(f func(BlockHeader) error) error {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	return b.st.out.forEachHeader(f)
}

// ForEachUTXO invokes f on every unspent output.
func (b *Backend) ForEachUTXO(f func(UnspentOutput) error) error {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	return b.st.out.forEachUTXO(f)
}

// FetchLastHeader returns the header at the greatest known height, or nil on
// an empty chain.
func (b *Backend) FetchLastHeader() (*BlockHeader, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_last_header")

	var (
		best  BlockHeader
		found bool
	)
	for _, h := range b.st.out.headers {
		if !found || h.Height > best.Height {
			best = h
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return &best, nil
}

// FetchMetadata returns a copy of the backend's chain metadata.
func (b *Backend) FetchMetadata() (ChainMetadata, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_metadata")
	return b.st.meta.Clone(), nil
}

// TargetDifficultyEntry is one sample fetch_target_difficulties returns:
// the timestamp a header claimed and the difficulty it targeted.
type TargetDifficultyEntry struct {
	Timestamp  time.Time
	Difficulty uint64
}

// FetchTargetDifficulties walks headers downward from height, collecting up
// to window entries whose PoW algorithm matches powAlgo, returned
// oldest-first (spec §4.6). Fails with ErrInvalidQuery on an empty chain.
func (b *Backend) FetchTargetDifficulties(powAlgo PowAlgo, height uint64, window int) ([]TargetDifficultyEntry, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	defer b.metrics.observeQuery("fetch_target_difficulties")

	if len(b.st.out.headers) == 0 {
		return nil, fmt.Errorf("%w: fetch_target_difficulties on an empty chain", ErrInvalidQuery)
	}

	var matches []TargetDifficultyEntry
	for h := height; ; h-- {
		if len(matches) >= window {
			break
		}
		if hdr, ok := b.st.out.headers[h]; ok && hdr.PowAlgo == powAlgo {
			matches = append(matches, TargetDifficultyEntry{Timestamp: hdr.Timestamp, Difficulty: hdr.Difficulty})
		}
		if h == 0 {
			break
		}
	}

	// matches was collected newest-first (descending height); reverse it so
	// the result is oldest-first, as spec §4.6 requires.
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}
	return matches, nil
}
