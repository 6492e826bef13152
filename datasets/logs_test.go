package datasets

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/schema"
	"github.com/flashbots/cryo-go/source"
	"github.com/stretchr/testify/require"
)

var (
	transferID = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	token      = common.HexToAddress("0x00000000000000000000000000000000000070cc")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newLog(block uint64, txIndex, logIndex uint, topics ...common.Hash) source.RawLog {
	bn := hexutil.Uint64(block)
	ti := hexutil.Uint(txIndex)
	li := hexutil.Uint(logIndex)
	txHash := common.BigToHash(big.NewInt(int64(block*1000 + uint64(txIndex))))
	return source.RawLog{ //nolint:exhaustruct
		Address:          token,
		Topics:           topics,
		Data:             hexutil.Bytes{0x01, 0x02},
		BlockNumber:      &bn,
		TransactionHash:  &txHash,
		TransactionIndex: &ti,
		LogIndex:         &li,
	}
}

func transferLog(block uint64, logIndex uint, value int64) source.RawLog {
	l := newLog(block, 0, logIndex, transferID, common.BytesToHash(alice.Bytes()), common.BytesToHash(bob.Bytes()))
	l.Data = common.LeftPadBytes(big.NewInt(value).Bytes(), 32)
	return l
}

func logsTable(t *testing.T, opts schema.TableOpts) *schema.Table {
	t.Helper()
	table, err := schema.Build(Logs{}, opts)
	require.NoError(t, err)
	return table
}

func transferDecoder(t *testing.T) *decoder.LogDecoder {
	t.Helper()
	d, err := decoder.NewLogDecoder("Transfer(address indexed from, address indexed to, uint256 value)")
	require.NoError(t, err)
	return d
}

func requireAligned(t *testing.T, c *LogColumns) {
	t.Helper()
	for col := logColumn(0); col < numLogColumns; col++ {
		if n := c.columnLen(col); n >= 0 {
			require.Equal(t, c.NRows(), n, logColumnNames[col])
		}
	}
}

func TestProcessLogsDropsIncomplete(t *testing.T) {
	table := logsTable(t, schema.TableOpts{}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)

	noBlock := newLog(1, 0, 0)
	noBlock.BlockNumber = nil
	noTx := newLog(1, 0, 1)
	noTx.TransactionHash = nil
	noTxIndex := newLog(1, 0, 2)
	noTxIndex.TransactionIndex = nil
	noLogIndex := newLog(1, 0, 3)
	noLogIndex.LogIndex = nil

	processLogs([]source.RawLog{noBlock, noTx, noTxIndex, noLogIndex}, c, table)
	require.Equal(t, 0, c.NRows())
	requireAligned(t, c)

	processLogs([]source.RawLog{newLog(1, 0, 4), noBlock, newLog(1, 1, 5)}, c, table)
	require.Equal(t, 2, c.NRows())
	requireAligned(t, c)
	require.Equal(t, []uint32{4, 5}, c.logIndex)
	require.Equal(t, []uint64{1, 1}, c.chainIDs)
}

func TestProcessLogsTopicSlots(t *testing.T) {
	table := logsTable(t, schema.TableOpts{}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)

	h := func(i int64) common.Hash { return common.BigToHash(big.NewInt(i)) }
	logs := []source.RawLog{
		newLog(1, 0, 0),
		newLog(1, 0, 1, h(1)),
		newLog(1, 0, 2, h(1), h(2)),
		newLog(1, 0, 3, h(1), h(2), h(3)),
		newLog(1, 0, 4, h(1), h(2), h(3), h(4)),
		newLog(1, 0, 5, h(1), h(2), h(3), h(4), h(5)),
	}
	processLogs(logs, c, table)
	require.Equal(t, 6, c.NRows())
	requireAligned(t, c)

	for row := 0; row < 5; row++ {
		for slot := 0; slot < numTopicSlots; slot++ {
			if slot < row {
				require.Equal(t, h(int64(slot+1)).Bytes(), c.topics[slot][row], "row %d slot %d", row, slot)
			} else {
				require.Nil(t, c.topics[slot][row], "row %d slot %d", row, slot)
			}
		}
	}

	// more than four topics is the same as the first four
	for slot := 0; slot < numTopicSlots; slot++ {
		require.Equal(t, c.topics[slot][4], c.topics[slot][5])
	}

	require.Panics(t, func() { c.appendTopic(numTopicSlots, &logs[0]) })
}

func TestColumnSubsetNotAllocated(t *testing.T) {
	table := logsTable(t, schema.TableOpts{Columns: []string{"block_number"}}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)
	processLogs([]source.RawLog{newLog(7, 0, 0, transferID), newLog(8, 0, 0)}, c, table)

	require.Equal(t, 2, c.NRows())
	require.True(t, c.Allocated("block_number"))
	require.Equal(t, []uint32{7, 8}, c.blockNumber)
	for _, name := range logColumnNames[1:] {
		require.False(t, c.Allocated(name), name)
	}
	require.Nil(t, c.transactionIndex)
	require.Nil(t, c.transactionHash)
	require.Nil(t, c.data)
	for slot := 0; slot < numTopicSlots; slot++ {
		require.Nil(t, c.topics[slot])
	}

	rec, err := c.ToRecord(table, memory.NewGoAllocator(), nil)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(1), rec.NumCols())
	require.Equal(t, "block_number", rec.ColumnName(0))
}

func TestBlockNumberNarrowing(t *testing.T) {
	table := logsTable(t, schema.TableOpts{Columns: []string{"block_number"}}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)
	processLogs([]source.RawLog{newLog(1<<32+5, 0, 0)}, c, table)
	require.Equal(t, []uint32{5}, c.blockNumber)
}

func TestEventColumnsMerge(t *testing.T) {
	table := logsTable(t, schema.TableOpts{LogDecoder: transferDecoder(t)}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)

	// values decoded from logs that are not stored are dropped
	incomplete := transferLog(1, 9, 99)
	incomplete.LogIndex = nil
	processLogs([]source.RawLog{transferLog(1, 0, 10), newLog(1, 0, 1), incomplete}, c, table)
	processLogs([]source.RawLog{transferLog(2, 0, 20), transferLog(2, 1, 30)}, c, table)

	require.Equal(t, 4, c.NRows())
	requireAligned(t, c)
	require.Equal(t, []string{"Transfer.from", "Transfer.to", "Transfer.value"}, c.Events().Keys())

	values, ok := c.Events().Get("Transfer.value")
	require.True(t, ok)
	require.Len(t, values, 3)
	got := make([]string, len(values))
	for i, v := range values {
		got[i] = v.String()
	}
	require.Equal(t, []string{"10", "20", "30"}, got)
	require.Equal(t, []int{0, 2, 3}, c.Events().Rows("Transfer.value"))
}

func TestToRecord(t *testing.T) {
	table := logsTable(t, schema.TableOpts{LogDecoder: transferDecoder(t)}) //nolint:exhaustruct
	c := NewLogColumns(table, 5)
	processLogs([]source.RawLog{transferLog(3, 1, 31), transferLog(2, 4, 24), transferLog(3, 0, 30)}, c, table)

	rec, err := c.ToRecord(table, memory.NewGoAllocator(), nil)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(3), rec.NumRows())
	require.Equal(t, int64(numLogColumns)+3, rec.NumCols())

	bn := rec.Column(0).(*array.Uint32)
	li := rec.Column(2).(*array.Uint32)
	require.Equal(t, []uint32{2, 3, 3}, bn.Uint32Values())
	require.Equal(t, []uint32{4, 0, 1}, li.Uint32Values())

	require.Equal(t, "topic3", rec.ColumnName(int(colTopic3)))
	require.True(t, rec.Column(int(colTopic3)).IsNull(0))
	require.False(t, rec.Column(int(colTopic2)).IsNull(0))

	chain := rec.Column(int(colChainID)).(*array.Uint64)
	require.Equal(t, []uint64{5, 5, 5}, chain.Uint64Values())

	require.Equal(t, "Transfer.value", rec.ColumnName(int(numLogColumns)+2))
	values := rec.Column(int(numLogColumns) + 2).(*array.String)
	require.Equal(t, "24", values.Value(0))
	require.Equal(t, "30", values.Value(1))
	require.Equal(t, "31", values.Value(2))

	from := rec.Column(int(numLogColumns)).(*array.Binary)
	require.Equal(t, alice.Bytes(), from.Value(0))
}

func TestToRecordAlignsEventsToRows(t *testing.T) {
	table := logsTable(t, schema.TableOpts{LogDecoder: transferDecoder(t), Sort: []string{"none"}}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)

	// same number of decoded values as rows, but not from the same logs
	incomplete := transferLog(1, 9, 99)
	incomplete.LogIndex = nil
	processLogs([]source.RawLog{transferLog(1, 0, 10), newLog(1, 0, 1), incomplete}, c, table)
	require.Equal(t, 2, c.NRows())

	rec, err := c.ToRecord(table, nil, nil)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(numLogColumns)+3, rec.NumCols())
	require.Equal(t, int64(2), rec.NumRows())

	require.True(t, rec.Column(int(colTopic0)).IsNull(1))
	value := rec.Column(int(numLogColumns) + 2).(*array.String)
	require.Equal(t, "Transfer.value", rec.ColumnName(int(numLogColumns)+2))
	require.Equal(t, "10", value.Value(0))
	require.True(t, value.IsNull(1))
	require.True(t, rec.Schema().Field(int(numLogColumns)+2).Nullable)

	from := rec.Column(int(numLogColumns)).(*array.Binary)
	require.True(t, from.IsNull(1))
}

func TestToRecordSortsSparseEvents(t *testing.T) {
	table := logsTable(t, schema.TableOpts{LogDecoder: transferDecoder(t)}) //nolint:exhaustruct
	c := NewLogColumns(table, 1)
	processLogs([]source.RawLog{transferLog(4, 0, 40), newLog(3, 0, 0), transferLog(2, 0, 20)}, c, table)

	rec, err := c.ToRecord(table, nil, nil)
	require.NoError(t, err)
	defer rec.Release()

	bn := rec.Column(int(colBlockNumber)).(*array.Uint32)
	require.Equal(t, []uint32{2, 3, 4}, bn.Uint32Values())
	value := rec.Column(int(numLogColumns) + 2).(*array.String)
	require.Equal(t, "20", value.Value(0))
	require.True(t, value.IsNull(1))
	require.Equal(t, "40", value.Value(2))
}

type fakeFetcher struct {
	logs     []source.RawLog
	receipts map[common.Hash][]source.RawLog
	err      error
	queries  []ethereum.FilterQuery
}

func (f *fakeFetcher) GetLogs(_ context.Context, q ethereum.FilterQuery) ([]source.RawLog, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	var out []source.RawLog
	for _, l := range f.logs {
		if n := uint64(*l.BlockNumber); n >= from && n <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFetcher) GetTransactionLogs(_ context.Context, txHash common.Hash) ([]source.RawLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.receipts[txHash], nil
}

func TestCollectByBlock(t *testing.T) {
	f := &fakeFetcher{logs: []source.RawLog{newLog(1, 0, 0), newLog(5, 0, 0), newLog(12, 0, 0)}} //nolint:exhaustruct
	src := &source.Source{Fetcher: f, ChainID: 1}
	table := logsTable(t, schema.TableOpts{}) //nolint:exhaustruct

	parts, err := partition.ChunkBlocks(partition.BlockRange{Start: 0, End: 9}, 10, 4, partition.Filter{}) //nolint:exhaustruct
	require.NoError(t, err)
	require.Len(t, parts, 1)

	cols, err := CollectLogs(context.Background(), &parts[0], src, table)
	require.NoError(t, err)
	require.Equal(t, 2, cols.NRows())
	require.Len(t, f.queries, 3)

	rec, err := Collect(context.Background(), schema.Logs, &parts[0], CollectOpts{ //nolint:exhaustruct
		Source:  src,
		Schemas: schema.Schemas{schema.Logs: table},
	})
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(2), rec.NumRows())
}

func TestCollectByTransaction(t *testing.T) {
	l1 := transferLog(1, 0, 1)
	l2 := newLog(1, 0, 1)
	f := &fakeFetcher{receipts: map[common.Hash][]source.RawLog{*l1.TransactionHash: {l1, l2}}} //nolint:exhaustruct
	src := &source.Source{Fetcher: f, ChainID: 1}
	table := logsTable(t, schema.TableOpts{}) //nolint:exhaustruct

	p := partition.Partition{TransactionHashes: []common.Hash{*l1.TransactionHash}} //nolint:exhaustruct
	cols, err := CollectLogs(context.Background(), &p, src, table)
	require.NoError(t, err)
	require.Equal(t, 2, cols.NRows())

	p.Topics[0] = []common.Hash{transferID}
	cols, err = CollectLogs(context.Background(), &p, src, table)
	require.NoError(t, err)
	require.Equal(t, 1, cols.NRows())
}

func TestCollectPropagatesErrors(t *testing.T) {
	errTransport := errors.New("connection refused")
	src := &source.Source{Fetcher: &fakeFetcher{err: errTransport}, ChainID: 1} //nolint:exhaustruct
	table := logsTable(t, schema.TableOpts{}) //nolint:exhaustruct

	p := partition.Partition{BlockRanges: []partition.BlockRange{{Start: 0, End: 1}}} //nolint:exhaustruct
	_, err := CollectLogs(context.Background(), &p, src, table)
	require.Equal(t, errTransport, err)

	p = partition.Partition{TransactionHashes: []common.Hash{{}}} //nolint:exhaustruct
	_, err = CollectLogs(context.Background(), &p, src, table)
	require.Equal(t, errTransport, err)

	_, err = Collect(context.Background(), schema.Logs, &p, CollectOpts{Source: src, Schemas: schema.Schemas{}}) //nolint:exhaustruct
	require.ErrorIs(t, err, schema.ErrSchemaNotFound)

	blocks := schema.Datatype("blocks")
	_, err = Collect(context.Background(), blocks, &p, CollectOpts{Source: src, Schemas: schema.Schemas{blocks: table}}) //nolint:exhaustruct
	require.ErrorIs(t, err, ErrUnsupportedDatatype)
	require.ErrorContains(t, err, "blocks")
}

func TestLogsDescriptor(t *testing.T) {
	d, err := Get(schema.Logs)
	require.NoError(t, err)
	require.Equal(t, "logs", d.Name())
	require.Equal(t, []string{"block_number", "log_index"}, d.DefaultSort())

	types := d.ColumnTypes()
	require.Len(t, types, int(numLogColumns))
	require.Equal(t, schema.UInt32, types["block_number"])
	require.Equal(t, schema.Binary, types["topic0"])
	require.Equal(t, schema.UInt64, types["chain_id"])

	_, err = Get(schema.Datatype("blocks"))
	require.ErrorIs(t, err, ErrUnsupportedDatatype)
}
