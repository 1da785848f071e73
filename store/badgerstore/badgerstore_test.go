package badgerstore

import (
	"sync"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/require"

	"github.com/pyezk/tari-1/store"
)

var testLoggerOnce sync.Once

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	testLoggerOnce.Do(func() { logger.New("NOOP") })
	return logger.Sugar.WithServiceName("badgerstore_test")
}

func hashByte(b byte) store.Hash {
	var h store.Hash
	h[0] = b
	return h
}

func TestWriteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir, testLogger(t))
	require.NoError(t, err)

	u := store.UnspentOutput{Commitment: hashByte(1), RangeProofHash: hashByte(2), Value: 42}
	require.NoError(t, b.Write([]store.WriteOperation{store.InsertUnspentOutput(u, false)}))
	require.NoError(t, b.Close())

	reopened, err := Open(dir, testLogger(t))
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Fetch(store.UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.UnspentOutput)
	require.Equal(t, u.Value, v.UnspentOutput.Value)
}

func TestSpendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir, testLogger(t))
	require.NoError(t, err)

	u := store.UnspentOutput{Commitment: hashByte(3), RangeProofHash: hashByte(4), Value: 7}
	require.NoError(t, b.Write([]store.WriteOperation{
		store.InsertUnspentOutput(u, false),
		store.Spend(u.Commitment),
	}))
	require.NoError(t, b.Close())

	reopened, err := Open(dir, testLogger(t))
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Fetch(store.UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = reopened.Fetch(store.SpentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.SpentOutput)
}

func TestWriteFailureLeavesPriorStateIntact(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, testLogger(t))
	require.NoError(t, err)
	defer b.Close()

	u := store.UnspentOutput{Commitment: hashByte(5), RangeProofHash: hashByte(6), Value: 1}
	require.NoError(t, b.Write([]store.WriteOperation{store.InsertUnspentOutput(u, false)}))

	err = b.Write([]store.WriteOperation{store.InsertUnspentOutput(u, false)})
	require.Error(t, err, "duplicate insert must be rejected by the underlying memory backend")

	v, err := b.Fetch(store.UnspentOutputKey(u.Commitment))
	require.NoError(t, err)
	require.NotNil(t, v.UnspentOutput)
}
