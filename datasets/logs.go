package datasets

import (
	"context"
	"fmt"
	"slices"

	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/schema"
	"github.com/flashbots/cryo-go/source"
)

type logColumn int

const (
	colBlockNumber logColumn = iota
	colTransactionIndex
	colLogIndex
	colTransactionHash
	colAddress
	colTopic0
	colTopic1
	colTopic2
	colTopic3
	colData
	colChainID
	numLogColumns
)

const numTopicSlots = 4

var logColumnNames = [numLogColumns]string{
	colBlockNumber:      "block_number",
	colTransactionIndex: "transaction_index",
	colLogIndex:         "log_index",
	colTransactionHash:  "transaction_hash",
	colAddress:          "address",
	colTopic0:           "topic0",
	colTopic1:           "topic1",
	colTopic2:           "topic2",
	colTopic3:           "topic3",
	colData:             "data",
	colChainID:          "chain_id",
}

var logColumnTypes = [numLogColumns]schema.ColumnType{
	colBlockNumber:      schema.UInt32,
	colTransactionIndex: schema.UInt32,
	colLogIndex:         schema.UInt32,
	colTransactionHash:  schema.Binary,
	colAddress:          schema.Binary,
	colTopic0:           schema.Binary,
	colTopic1:           schema.Binary,
	colTopic2:           schema.Binary,
	colTopic3:           schema.Binary,
	colData:             schema.Binary,
	colChainID:          schema.UInt64,
}

// Logs is the event log dataset
type Logs struct{}

func (Logs) Datatype() schema.Datatype {
	return schema.Logs
}

func (Logs) Name() string {
	return "logs"
}

func (Logs) Columns() []string {
	return slices.Clone(logColumnNames[:])
}

func (Logs) ColumnTypes() map[string]schema.ColumnType {
	types := make(map[string]schema.ColumnType, numLogColumns)
	for i, name := range logColumnNames {
		types[name] = logColumnTypes[i]
	}
	return types
}

// ColumnAliases lets contract_address select the address column.
func (Logs) ColumnAliases() map[string]string {
	return map[string]string{"contract_address": "address"}
}

func (l Logs) DefaultColumns() []string {
	return l.Columns()
}

func (Logs) DefaultSort() []string {
	return []string{"block_number", "log_index"}
}

// LogColumns accumulates logs of one partition. A column is only allocated
// if the table requests it; has is resolved once at construction.
type LogColumns struct {
	has     [numLogColumns]bool
	chainID uint64

	nRows            int
	blockNumber      []uint32
	transactionIndex []uint32
	logIndex         []uint32
	transactionHash  [][]byte
	address          [][]byte
	topics           [numTopicSlots][][]byte // nil entry: topic absent
	data             [][]byte
	chainIDs         []uint64

	events *decoder.Fields
}

func NewLogColumns(table *schema.Table, chainID uint64) *LogColumns {
	c := &LogColumns{
		chainID: chainID,
		events:  decoder.NewFields(),
	}
	for i, name := range logColumnNames {
		c.has[i] = table.Has(name)
	}

	if c.has[colBlockNumber] {
		c.blockNumber = make([]uint32, 0)
	}
	if c.has[colTransactionIndex] {
		c.transactionIndex = make([]uint32, 0)
	}
	if c.has[colLogIndex] {
		c.logIndex = make([]uint32, 0)
	}
	if c.has[colTransactionHash] {
		c.transactionHash = make([][]byte, 0)
	}
	if c.has[colAddress] {
		c.address = make([][]byte, 0)
	}
	for slot := 0; slot < numTopicSlots; slot++ {
		if c.has[colTopic0+logColumn(slot)] {
			c.topics[slot] = make([][]byte, 0)
		}
	}
	if c.has[colData] {
		c.data = make([][]byte, 0)
	}
	if c.has[colChainID] {
		c.chainIDs = make([]uint64, 0)
	}
	return c
}

func (c *LogColumns) NRows() int {
	return c.nRows
}

// Allocated reports whether the backing sequence of a fixed column exists
func (c *LogColumns) Allocated(column string) bool {
	i := slices.Index(logColumnNames[:], column)
	if i < 0 {
		return false
	}
	return c.columnLen(logColumn(i)) >= 0
}

// Events returns the decoded event columns in first-seen order. Values are
// tagged with the row of the log they were decoded from.
func (c *LogColumns) Events() *decoder.Fields {
	return c.events
}

// columnLen returns the length of a fixed column, -1 if it is not allocated
func (c *LogColumns) columnLen(col logColumn) int {
	if !c.has[col] {
		return -1
	}
	switch col {
	case colBlockNumber:
		return len(c.blockNumber)
	case colTransactionIndex:
		return len(c.transactionIndex)
	case colLogIndex:
		return len(c.logIndex)
	case colTransactionHash:
		return len(c.transactionHash)
	case colAddress:
		return len(c.address)
	case colTopic0, colTopic1, colTopic2, colTopic3:
		return len(c.topics[col-colTopic0])
	case colData:
		return len(c.data)
	case colChainID:
		return len(c.chainIDs)
	}
	return -1
}

func (c *LogColumns) appendTopic(slot int, log *source.RawLog) {
	if slot < 0 || slot >= numTopicSlots {
		panic(fmt.Sprintf("topic slot %d out of range", slot))
	}
	if !c.has[colTopic0+logColumn(slot)] {
		return
	}
	topic, ok := log.Topic(slot)
	if !ok {
		c.topics[slot] = append(c.topics[slot], nil)
		return
	}
	c.topics[slot] = append(c.topics[slot], topic.Bytes())
}

// processLogs appends every complete log as one row, then runs the event
// decoder over the whole batch. Logs missing an identifying field are
// skipped without touching any column, and their decoded values are dropped.
func processLogs(logs []source.RawLog, c *LogColumns, table *schema.Table) {
	// row of each batch log, -1 if not stored
	rowOf := make([]int, len(logs))
	for i := range logs {
		log := &logs[i]
		if !log.IsComplete() {
			rowOf[i] = -1
			continue
		}

		rowOf[i] = c.nRows
		c.nRows++
		if c.has[colBlockNumber] {
			c.blockNumber = append(c.blockNumber, uint32(*log.BlockNumber))
		}
		if c.has[colTransactionIndex] {
			c.transactionIndex = append(c.transactionIndex, uint32(*log.TransactionIndex))
		}
		if c.has[colLogIndex] {
			c.logIndex = append(c.logIndex, uint32(*log.LogIndex))
		}
		if c.has[colTransactionHash] {
			c.transactionHash = append(c.transactionHash, log.TransactionHash.Bytes())
		}
		if c.has[colAddress] {
			c.address = append(c.address, log.Address.Bytes())
		}
		for slot := 0; slot < numTopicSlots; slot++ {
			c.appendTopic(slot, log)
		}
		if c.has[colData] {
			c.data = append(c.data, append([]byte{}, log.Data...))
		}
		if c.has[colChainID] {
			c.chainIDs = append(c.chainIDs, c.chainID)
		}
	}

	if table.LogDecoder != nil {
		c.events.ExtendRows(table.LogDecoder.Decode(logs), rowOf)
	}
}

// LogsByBlock fetches logs of a block range with eth_getLogs
type LogsByBlock struct{}

func (LogsByBlock) Extract(ctx context.Context, params partition.Params, src *source.Source) ([]source.RawLog, error) {
	if params.BlockRange == nil {
		return nil, fmt.Errorf("%w: by block without block range", errParamsMismatch)
	}
	return src.Fetcher.GetLogs(ctx, params.FilterQuery())
}

func (LogsByBlock) Transform(logs []source.RawLog, c *LogColumns, table *schema.Table) {
	processLogs(logs, c, table)
}

// LogsByTransaction fetches the logs of one transaction from its receipt.
// Receipts are unfiltered, so the partition filter is applied here.
type LogsByTransaction struct{}

func (LogsByTransaction) Extract(ctx context.Context, params partition.Params, src *source.Source) ([]source.RawLog, error) {
	if params.TransactionHash == nil {
		return nil, fmt.Errorf("%w: by transaction without hash", errParamsMismatch)
	}
	logs, err := src.Fetcher.GetTransactionLogs(ctx, *params.TransactionHash)
	if err != nil {
		return nil, err
	}
	if params.Filter.IsEmpty() {
		return logs, nil
	}

	filtered := make([]source.RawLog, 0, len(logs))
	for _, l := range logs {
		if params.Filter.Matches(l.Address, l.Topics) {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

func (LogsByTransaction) Transform(logs []source.RawLog, c *LogColumns, table *schema.Table) {
	processLogs(logs, c, table)
}
