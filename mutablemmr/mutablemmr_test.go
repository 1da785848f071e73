package mutablemmr

import (
	"crypto/sha256"
	"testing"

	"github.com/pyezk/tari-1/hashvec"
	"github.com/stretchr/testify/require"
)

func leaf(b byte) hashvec.Hash {
	var h hashvec.Hash
	h[0] = b
	return h
}

func newMutable(deletable bool) *MutableMmr {
	return New(hashvec.New(), sha256.New, deletable)
}

func pushN(t *testing.T, m *MutableMmr, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := m.Engine().PushLeaf(leaf(byte(i)))
		require.NoError(t, err)
	}
}

func TestDeleteIdempotentOnDeletableTree(t *testing.T) {
	m := newMutable(true)
	pushN(t, m, 5)

	require.True(t, m.Delete(2))
	require.False(t, m.Delete(2), "second delete of the same leaf reports no change")
	require.True(t, m.IsDeleted(2))
}

func TestDeleteOutOfRange(t *testing.T) {
	m := newMutable(true)
	pushN(t, m, 3)

	require.False(t, m.Delete(99))
	require.False(t, m.IsDeleted(99))
}

func TestDeleteNoOpOnNonDeletableTree(t *testing.T) {
	m := newMutable(false)
	pushN(t, m, 5)

	require.False(t, m.Delete(0))
	require.False(t, m.IsDeleted(0))
}

func TestMerkleRootWithDeletionsDiffersAfterDelete(t *testing.T) {
	m := newMutable(true)
	pushN(t, m, 8)

	before, err := m.MerkleRootWithDeletions()
	require.NoError(t, err)

	require.True(t, m.Delete(3))

	after, err := m.MerkleRootWithDeletions()
	require.NoError(t, err)

	require.NotEqual(t, before, after, "deletion must change the deletion-aware root")
}

func TestMerkleRootWithDeletionsMatchesMMROnlyRootWhenNotDeletable(t *testing.T) {
	m := newMutable(false)
	pushN(t, m, 6)

	plain, err := m.MMROnlyRoot()
	require.NoError(t, err)

	withDeletions, err := m.MerkleRootWithDeletions()
	require.NoError(t, err)

	require.Equal(t, plain, withDeletions)
}

func TestMMROnlyRootUnaffectedByDeletion(t *testing.T) {
	m := newMutable(true)
	pushN(t, m, 6)

	before, err := m.MMROnlyRoot()
	require.NoError(t, err)

	require.True(t, m.Delete(1))

	after, err := m.MMROnlyRoot()
	require.NoError(t, err)

	require.Equal(t, before, after, "mmr-only root ignores the deletion bitmap entirely")
}

func TestCompressIsStableAcrossEquivalentBitmapStates(t *testing.T) {
	a := newMutable(true)
	pushN(t, a, 8)
	require.True(t, a.Delete(0))
	require.True(t, a.Delete(5))

	b := newMutable(true)
	pushN(t, b, 8)
	require.True(t, b.Delete(5))
	require.True(t, b.Delete(0))

	rootA, err := a.MerkleRootWithDeletions()
	require.NoError(t, err)
	rootB, err := b.MerkleRootWithDeletions()
	require.NoError(t, err)

	require.Equal(t, rootA, rootB, "order of deletion must not affect the compressed root")
}

func TestDeleteBeyondCurrentLeafCountRejected(t *testing.T) {
	m := newMutable(true)
	pushN(t, m, 2)

	require.False(t, m.Delete(2))
	require.False(t, m.Delete(1000))
}
