package partition

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	hash1 = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	hash2 = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
	hash3 = common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")
	addr1 = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestParseBlockRange(t *testing.T) {
	r, err := ParseBlockRange("100:200")
	require.NoError(t, err)
	require.Equal(t, BlockRange{Start: 100, End: 199}, r)
	require.Equal(t, uint64(100), r.Len())

	r, err = ParseBlockRange("16M:+1000")
	require.NoError(t, err)
	require.Equal(t, BlockRange{Start: 16_000_000, End: 16_000_999}, r)

	r, err = ParseBlockRange("1.5k")
	require.NoError(t, err)
	require.Equal(t, BlockRange{Start: 1500, End: 1500}, r)

	for _, bad := range []string{"", "abc", "10:5", "10:10", "5:+0", "x:10", "-1"} {
		_, err = ParseBlockRange(bad)
		require.Error(t, err, bad)
	}
}

func TestChunkBlocks(t *testing.T) {
	filter := Filter{Addresses: []common.Address{addr1}} //nolint:exhaustruct
	parts, err := ChunkBlocks(BlockRange{Start: 0, End: 2499}, 1000, 300, filter)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	require.Equal(t, "00000000_to_00000999", parts[0].Label())
	require.Equal(t, "00002000_to_00002499", parts[2].Label())
	require.Len(t, parts[0].BlockRanges, 4)
	require.Equal(t, BlockRange{Start: 900, End: 999}, parts[0].BlockRanges[3])
	require.Len(t, parts[2].BlockRanges, 2)

	var total uint64
	for _, p := range parts {
		require.NoError(t, p.Validate())
		require.Equal(t, ByBlock, p.Kind())
		require.Equal(t, filter.Addresses, p.Addresses)
		for _, r := range p.BlockRanges {
			total += r.Len()
		}
	}
	require.Equal(t, uint64(2500), total)

	_, err = ChunkBlocks(BlockRange{Start: 0, End: 10}, 0, 1, Filter{}) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestChunkBlocksTopOfRange(t *testing.T) {
	r := BlockRange{Start: math.MaxUint64 - 24, End: math.MaxUint64}
	parts, err := ChunkBlocks(r, 10, 4, Filter{}) //nolint:exhaustruct
	require.NoError(t, err)
	require.Len(t, parts, 3)
	require.Equal(t, "18446744073709551611_to_18446744073709551615", parts[2].Label())
	require.Equal(t, []BlockRange{
		{Start: math.MaxUint64 - 4, End: math.MaxUint64 - 1},
		{Start: math.MaxUint64, End: math.MaxUint64},
	}, parts[2].BlockRanges)
	require.Len(t, parts[0].BlockRanges, 3)
	require.Equal(t, BlockRange{Start: math.MaxUint64 - 16, End: math.MaxUint64 - 15}, parts[0].BlockRanges[2])

	parts, err = ChunkBlocks(BlockRange{Start: 7, End: 9}, math.MaxUint64, math.MaxUint64, Filter{}) //nolint:exhaustruct
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.Equal(t, []BlockRange{{Start: 7, End: 9}}, parts[0].BlockRanges)
}

func TestChunkTransactions(t *testing.T) {
	parts, err := ChunkTransactions([]common.Hash{hash1, hash2, hash3}, 2, Filter{}) //nolint:exhaustruct
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, ByTransaction, parts[0].Kind())
	require.Equal(t, "txs_0x11111111_to_0x22222222", parts[0].Label())
	require.Equal(t, "tx_"+hash3.Hex(), parts[1].Label())

	reqs := parts[0].Requests()
	require.Len(t, reqs, 2)
	require.Nil(t, reqs[0].BlockRange)
	require.Equal(t, hash2, *reqs[1].TransactionHash)
}

func TestValidate(t *testing.T) {
	p := Partition{} //nolint:exhaustruct
	require.ErrorIs(t, p.Validate(), ErrEmptyPartition)

	p = Partition{BlockRanges: []BlockRange{{1, 2}}, TransactionHashes: []common.Hash{hash1}} //nolint:exhaustruct
	require.ErrorIs(t, p.Validate(), ErrMixedPartition)

	p = Partition{BlockRanges: []BlockRange{{5, 2}}} //nolint:exhaustruct
	require.ErrorIs(t, p.Validate(), ErrInvalidRange)
}

func TestFilterQuery(t *testing.T) {
	p := Partition{ //nolint:exhaustruct
		BlockRanges: []BlockRange{{10, 19}},
		Filter: Filter{
			Addresses: []common.Address{addr1},
			Topics:    [4][]common.Hash{{hash1}, nil, {hash2}, nil},
		},
	}
	reqs := p.Requests()
	require.Len(t, reqs, 1)

	q := reqs[0].FilterQuery()
	require.Equal(t, big.NewInt(10), q.FromBlock)
	require.Equal(t, big.NewInt(19), q.ToBlock)
	require.Equal(t, []common.Address{addr1}, q.Addresses)
	require.Len(t, q.Topics, 3)
	require.Nil(t, q.Topics[1])
	require.Equal(t, []common.Hash{hash2}, q.Topics[2])
}

func TestFilterMatches(t *testing.T) {
	f := Filter{Topics: [4][]common.Hash{{hash1}, nil, nil, nil}} //nolint:exhaustruct
	require.True(t, f.Matches(addr1, []common.Hash{hash1, hash2}))
	require.False(t, f.Matches(addr1, []common.Hash{hash2}))
	require.False(t, f.Matches(addr1, nil))

	f = Filter{Addresses: []common.Address{addr1}} //nolint:exhaustruct
	require.False(t, f.Matches(common.Address{}, nil))
	require.True(t, f.Matches(addr1, nil))
	require.False(t, f.IsEmpty())
	require.True(t, Filter{}.IsEmpty()) //nolint:exhaustruct
}

func TestParseHashes(t *testing.T) {
	hashes, err := ParseHashes([]string{hash1.Hex()})
	require.NoError(t, err)
	require.Equal(t, []common.Hash{hash1}, hashes)

	_, err = ParseHashes([]string{"0x1234"})
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = ParseAddresses([]string{"nope"})
	require.ErrorIs(t, err, ErrInvalidAddress)
}
