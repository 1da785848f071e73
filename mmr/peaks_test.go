package mmr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeaksKnownSizes(t *testing.T) {
	// mmrSize 18 has peaks at positions 15 and 18, per the standard MMR
	// layout diagram (10 leaves: 8+2 mountains).
	require.Equal(t, []uint64{15, 18}, Peaks(18))
}

func TestPeaksInvalidSize(t *testing.T) {
	require.Nil(t, Peaks(0))
	// size 2 is not a valid mmr size: a sibling exists (pos 1,2) but no
	// parent has been backfilled yet.
	require.Nil(t, Peaks(2))
}

func TestLeafCountMatchesPushes(t *testing.T) {
	e := newEngine()
	for i := 0; i < 100; i++ {
		_, err := e.PushLeaf(leaf(byte(i)))
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), e.LeafCount())
	}
}

func TestMMRIndexMatchesPushOrder(t *testing.T) {
	e := newEngine()
	for i := uint64(0); i < 20; i++ {
		nodeIndex, err := e.PushLeaf(leaf(byte(i)))
		require.NoError(t, err)
		require.Equal(t, MMRIndex(i), nodeIndex)
	}
}
