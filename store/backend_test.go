package store

import (
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pyezk/tari-1/hashvec"
	"github.com/pyezk/tari-1/ledger"
)

var errBoom = errors.New("boom")

func sha256EmptyRoot() Hash {
	return hashvec.FromBytes(sha256.New().Sum(nil))
}

var testLoggerOnce sync.Once

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	testLoggerOnce.Do(func() { logger.New("NOOP") })
	return logger.Sugar.WithServiceName("store_test")
}

func hashByte(b byte) Hash {
	var h Hash
	h[0] = b
	return h
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return NewBackend(testLogger(t))
}

func utxoFixture(commitment, rangeProof byte, value uint64) UnspentOutput {
	return UnspentOutput{
		Commitment:     hashByte(commitment),
		RangeProofHash: hashByte(rangeProof),
		Value:          value,
	}
}

// S1: fresh backend, Insert(UnspentOutput, update_mmr=true), checkpoint the
// range-proof tree then the UTXO tree; fetch returns the output with index 0.
func TestS1_InsertUnspentOutputAssignsIndexZero(t *testing.T) {
	b := newTestBackend(t)

	u := utxoFixture(0xA, 0xB, 100)
	require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true)}))
	require.NoError(t, b.Write([]WriteOperation{CreateMmrCheckpoint(ledger.RangeProof)}))
	require.NoError(t, b.Write([]WriteOperation{CreateMmrCheckpoint(ledger.Utxo)}))

	v, err := b.Fetch(UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.UnspentOutput)
	require.Equal(t, uint64(0), v.UnspentOutput.Index)
	require.Equal(t, u.Value, v.UnspentOutput.Value)
}

// S2: after S1, Spend moves the record to STXO with the same index and the
// UTXO lookup returns nothing.
func TestS2_SpendMovesUtxoToStxo(t *testing.T) {
	b := newTestBackend(t)
	u := utxoFixture(0xA, 0xB, 100)
	require.NoError(t, b.Write([]WriteOperation{
		InsertUnspentOutput(u, true),
		CreateMmrCheckpoint(ledger.RangeProof),
		CreateMmrCheckpoint(ledger.Utxo),
		Spend(u.Commitment),
	}))

	v, err := b.Fetch(UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = b.Fetch(SpentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.SpentOutput)
	require.Equal(t, uint64(0), v.SpentOutput.Index)
}

// S3: after S2, checkpoint then rewind 1; the output is unspent again and
// the UTXO root matches the root right after S1's checkpoint.
func TestS3_RewindRestoresSpentOutput(t *testing.T) {
	b := newTestBackend(t)
	u := utxoFixture(0xA, 0xB, 100)
	require.NoError(t, b.Write([]WriteOperation{
		InsertUnspentOutput(u, true),
		CreateMmrCheckpoint(ledger.RangeProof),
		CreateMmrCheckpoint(ledger.Utxo),
	}))

	rootAfterS1, err := b.FetchMmrRoot(ledger.Utxo)
	require.NoError(t, err)

	require.NoError(t, b.Write([]WriteOperation{
		Spend(u.Commitment),
		CreateMmrCheckpoint(ledger.Utxo),
	}))
	require.NoError(t, b.Write([]WriteOperation{RewindMmr(ledger.Utxo, 1)}))

	v, err := b.Fetch(UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.UnspentOutput)

	rootAfterRewind, err := b.FetchMmrRoot(ledger.Utxo)
	require.NoError(t, err)
	require.Equal(t, rootAfterS1, rootAfterRewind)
}

// S4: two headers indexed by height; BlockHash resolves H1; deleting the
// header at height 1 removes both the header and its BlockHash entry.
func TestS4_HeaderDeleteRemovesBlockHashIndex(t *testing.T) {
	b := newTestBackend(t)
	h0 := BlockHeader{Height: 0, Timestamp: time.Unix(0, 0)}
	h1 := BlockHeader{Height: 1, Timestamp: time.Unix(1, 0)}

	require.NoError(t, b.Write([]WriteOperation{
		InsertBlockHeader(h0),
		InsertBlockHeader(h1),
	}))

	v, err := b.Fetch(BlockHashKey(h1.Hash()))
	require.NoError(t, err)
	require.NotNil(t, v.BlockHash)
	require.Equal(t, uint64(1), *v.BlockHash)

	require.NoError(t, b.Write([]WriteOperation{Delete(BlockHeaderKey(1))}))

	v, err = b.Fetch(BlockHeaderKey(1))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = b.Fetch(BlockHashKey(h1.Hash()))
	require.NoError(t, err)
	require.Nil(t, v)
}

// S5: an empty backend's Kernel root equals the hash function's empty-MMR
// root constant (the hash of the empty input).
func TestS5_EmptyBackendKernelRootIsEmptyConstant(t *testing.T) {
	b := newTestBackend(t)
	root, err := b.FetchMmrRoot(ledger.Kernel)
	require.NoError(t, err)

	empty := sha256EmptyRoot()
	require.Equal(t, empty, root)
}

// S6: insert 100 UTXOs, checkpointing every 10; node-count queries at
// checkpoint heights 0, 9, and past the end all resolve correctly.
func TestS6_NodeCountAcrossCheckpoints(t *testing.T) {
	b := newTestBackend(t)

	for cp := 0; cp < 10; cp++ {
		var ops []WriteOperation
		for i := 0; i < 10; i++ {
			n := byte(cp*10 + i)
			ops = append(ops,
				InsertUnspentOutput(utxoFixture(n, n, uint64(n)), true),
			)
		}
		ops = append(ops, CreateMmrCheckpoint(ledger.RangeProof), CreateMmrCheckpoint(ledger.Utxo))
		require.NoError(t, b.Write(ops))
	}

	n0, err := b.FetchMmrNodeCount(ledger.Utxo, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), n0)

	n9, err := b.FetchMmrNodeCount(ledger.Utxo, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(100), n9)

	n1000, err := b.FetchMmrNodeCount(ledger.Utxo, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(100), n1000)
}

func TestDuplicateInsertFails(t *testing.T) {
	b := newTestBackend(t)
	u := utxoFixture(1, 1, 1)
	require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true)}))

	err := b.Write([]WriteOperation{InsertUnspentOutput(u, true)})
	require.ErrorIs(t, err, ErrInvalidOperation)
}

func TestSpendMissingUtxoFails(t *testing.T) {
	b := newTestBackend(t)
	err := b.Write([]WriteOperation{Spend(hashByte(9))})
	require.ErrorIs(t, err, ErrUnspendableInput)
}

func TestUnspendMissingStxoFails(t *testing.T) {
	b := newTestBackend(t)
	err := b.Write([]WriteOperation{UnSpend(hashByte(9))})
	require.ErrorIs(t, err, ErrUnspendError)
}

func TestSpendOfSpentOutputFails(t *testing.T) {
	b := newTestBackend(t)
	u := utxoFixture(1, 1, 1)
	require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true), Spend(u.Commitment)}))

	err := b.Write([]WriteOperation{Spend(u.Commitment)})
	require.ErrorIs(t, err, ErrUnspendableInput)
}

func TestOrphanCount(t *testing.T) {
	b := newTestBackend(t)

	n, err := b.OrphanCount()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	for i := byte(0); i < 3; i++ {
		o := OrphanBlock{
			ID:     uuid.New(),
			Header: BlockHeader{Height: uint64(i), Timestamp: time.Unix(int64(i), 0)},
		}
		require.NoError(t, b.Write([]WriteOperation{InsertOrphanBlock(o)}))
	}

	n, err = b.OrphanCount()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

// property 1: root determinism across two fresh backends replaying the same
// operation sequence.
func TestRootDeterminismAcrossFreshBackends(t *testing.T) {
	build := func() Hash {
		b := newTestBackend(t)
		for i := byte(0); i < 5; i++ {
			u := utxoFixture(i, i, uint64(i))
			require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true)}))
		}
		require.NoError(t, b.Write([]WriteOperation{
			CreateMmrCheckpoint(ledger.RangeProof),
			CreateMmrCheckpoint(ledger.Utxo),
		}))
		root, err := b.FetchMmrRoot(ledger.Utxo)
		require.NoError(t, err)
		return root
	}
	require.Equal(t, build(), build())
}

// property 5: with no leaf deleted, a proof for every present leaf verifies
// against the deletion-aware root.
func TestProofVerificationRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	var commitments []Hash
	var ops []WriteOperation
	for i := byte(0); i < 6; i++ {
		u := utxoFixture(i, i, uint64(i))
		commitments = append(commitments, u.Commitment)
		ops = append(ops, InsertUnspentOutput(u, true))
	}
	ops = append(ops, CreateMmrCheckpoint(ledger.RangeProof), CreateMmrCheckpoint(ledger.Utxo))
	require.NoError(t, b.Write(ops))

	root, err := b.FetchMmrRoot(ledger.Utxo)
	require.NoError(t, err)

	for i, c := range commitments {
		proof, err := b.FetchMmrProof(ledger.Utxo, uint64(i))
		require.NoError(t, err)
		ok := b.ledger(ledger.Utxo).VerifyProof(root, c, proof)
		require.True(t, ok)
	}
}

// property 6: calculate_mmr_root([a], []) matches actually inserting a and
// checkpointing, computed on an independently-built clone.
func TestCalculateMmrRootMatchesActualInsert(t *testing.T) {
	seed := func(b *Backend) {
		for i := byte(0); i < 3; i++ {
			u := utxoFixture(i, i, uint64(i))
			require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true)}))
		}
		require.NoError(t, b.Write([]WriteOperation{
			CreateMmrCheckpoint(ledger.RangeProof),
			CreateMmrCheckpoint(ledger.Utxo),
		}))
	}

	b1 := newTestBackend(t)
	seed(b1)
	newLeaf := utxoFixture(200, 200, 200)
	hypothetical, err := b1.CalculateMmrRoot(ledger.RangeProof, []Hash{newLeaf.RangeProofHash}, nil)
	require.NoError(t, err)

	b2 := newTestBackend(t)
	seed(b2)
	require.NoError(t, b2.Write([]WriteOperation{InsertUnspentOutput(newLeaf, true)}))
	require.NoError(t, b2.Write([]WriteOperation{CreateMmrCheckpoint(ledger.RangeProof)}))
	actual, err := b2.FetchMmrRoot(ledger.RangeProof)
	require.NoError(t, err)

	require.Equal(t, actual, hypothetical)
}

// property 7: rewinding by more steps than exist still leaves exactly one
// committed checkpoint.
func TestRewindFloorNeverDropsAllCheckpoints(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Write([]WriteOperation{
		InsertTransactionKernel(TransactionKernel{Excess: hashByte(1)}, true),
		CreateMmrCheckpoint(ledger.Kernel),
	}))
	require.NoError(t, b.Write([]WriteOperation{RewindMmr(ledger.Kernel, 100)}))

	cp, err := b.FetchCheckpoint(ledger.Kernel, 0)
	require.NoError(t, err)
	require.Len(t, cp.NodesAdded, 1)

	_, err = b.FetchCheckpoint(ledger.Kernel, 1)
	require.ErrorIs(t, err, ledger.ErrOutOfRange)
}

func TestCloneSharesUnderlyingState(t *testing.T) {
	b := newTestBackend(t)
	clone := b.Clone()

	u := utxoFixture(1, 1, 1)
	require.NoError(t, clone.Write([]WriteOperation{InsertUnspentOutput(u, true)}))

	v, err := b.Fetch(UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v, "writes through a clone must be visible through the original handle")
}

func TestForEachUTXOContinuesPastCallbackError(t *testing.T) {
	b := newTestBackend(t)
	for i := byte(0); i < 3; i++ {
		u := utxoFixture(i, i, uint64(i))
		require.NoError(t, b.Write([]WriteOperation{InsertUnspentOutput(u, true)}))
	}

	var seen int
	err := b.ForEachUTXO(func(UnspentOutput) error {
		seen++
		return errBoom
	})
	require.Error(t, err)
	require.Equal(t, 3, seen, "a callback error must never short-circuit the scan")
}

func TestFetchTargetDifficultiesOldestFirstWindowed(t *testing.T) {
	b := newTestBackend(t)
	var ops []WriteOperation
	for h := uint64(0); h < 5; h++ {
		ops = append(ops, InsertBlockHeader(BlockHeader{
			Height:     h,
			Timestamp:  time.Unix(int64(h), 0),
			PowAlgo:    PowAlgoSHA3,
			Difficulty: h + 1,
		}))
	}
	require.NoError(t, b.Write(ops))

	entries, err := b.FetchTargetDifficulties(PowAlgoSHA3, 4, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(2), entries[0].Difficulty)
	require.Equal(t, uint64(4), entries[2].Difficulty)
}

func TestFetchTargetDifficultiesEmptyChainFails(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.FetchTargetDifficulties(PowAlgoSHA3, 0, 1)
	require.ErrorIs(t, err, ErrInvalidQuery)
}
