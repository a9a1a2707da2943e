package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/optable/kkrt/internal/hash"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/prng"
)

func TestAuditor(t *testing.T) {
	for _, typ := range []int{hash.Highway, hash.Murmur3, hash.Metro} {
		a, err := New(1000, typ)
		require.NoError(t, err)

		p := prng.New(block.FromUint64s(1, uint64(typ)))
		blocks := make([]block.Block, 1000)
		p.Blocks(blocks)
		for _, b := range blocks {
			require.NoError(t, a.Observe(b))
		}
		require.Equal(t, 1000, a.Len())

		require.ErrorIs(t, a.Observe(blocks[17]), ErrRepeatedEncoding)
		require.Equal(t, 1000, a.Len())
		require.GreaterOrEqual(t, a.FilterHits(), 1)
	}
}

func TestAuditorUnknownHash(t *testing.T) {
	_, err := New(10, 42)
	require.ErrorIs(t, err, hash.ErrUnknownHash)
}
