package datasets

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/schema"
	"go.uber.org/zap"
)

// ArrowType maps a column type to its arrow representation
func ArrowType(t schema.ColumnType) arrow.DataType {
	switch t {
	case schema.UInt32:
		return arrow.PrimitiveTypes.Uint32
	case schema.UInt64:
		return arrow.PrimitiveTypes.Uint64
	case schema.Int64:
		return arrow.PrimitiveTypes.Int64
	case schema.Binary:
		return arrow.BinaryTypes.Binary
	case schema.Boolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// EventColumnType is the column type of a decoded event value
func EventColumnType(k decoder.Kind) schema.ColumnType {
	switch k {
	case decoder.KindAddress, decoder.KindBytes:
		return schema.Binary
	case decoder.KindUint, decoder.KindInt:
		return schema.Decimal
	case decoder.KindBool:
		return schema.Boolean
	default:
		return schema.String
	}
}

// ToRecord converts the accumulated columns into an arrow record, ordered by
// the table sort key. Event columns are nullable, rows whose log was not
// decoded are null.
func (c *LogColumns) ToRecord(table *schema.Table, mem memory.Allocator, log *zap.SugaredLogger) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	order, err := c.sortOrder(table.SortColumns())
	if err != nil {
		return nil, err
	}

	fields := make([]arrow.Field, 0, int(numLogColumns)+c.events.Len())
	cols := make([]arrow.Array, 0, cap(fields))
	defer func() {
		for _, a := range cols {
			a.Release()
		}
	}()

	for _, name := range table.Columns() {
		i := slices.Index(logColumnNames[:], name)
		if i < 0 {
			continue
		}
		col := logColumn(i)
		arr := c.buildColumn(col, order, mem)
		fields = append(fields, arrow.Field{ //nolint:exhaustruct
			Name:     name,
			Type:     arr.DataType(),
			Nullable: col >= colTopic0 && col <= colTopic3,
		})
		cols = append(cols, arr)
	}

	for _, name := range c.events.Keys() {
		values, _ := c.events.Get(name)
		if len(values) < c.nRows && log != nil {
			log.Debugw("sparse event column", "column", name, "values", len(values), "rows", c.nRows)
		}
		arr := buildEventColumn(values, c.events.Rows(name), c.nRows, order, mem)
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}) //nolint:exhaustruct
		cols = append(cols, arr)
	}

	sc := arrow.NewSchema(fields, nil)
	return array.NewRecord(sc, cols, int64(c.nRows)), nil
}

// sortOrder returns the row permutation for the sort key, nil keeps arrival order
func (c *LogColumns) sortOrder(sortColumns []string) ([]int, error) {
	if len(sortColumns) == 0 {
		return nil, nil
	}

	keys := make([]func(a, b int) int, 0, len(sortColumns))
	for _, name := range sortColumns {
		i := slices.Index(logColumnNames[:], name)
		if i < 0 || c.columnLen(logColumn(i)) < 0 {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownSortKey, name)
		}
		keys = append(keys, c.comparator(logColumn(i)))
	}

	order := make([]int, c.nRows)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		for _, key := range keys {
			if r := key(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return order, nil
}

func (c *LogColumns) comparator(col logColumn) func(a, b int) int {
	u32 := func(s []uint32) func(a, b int) int {
		return func(a, b int) int { return cmp.Compare(s[a], s[b]) }
	}
	bin := func(s [][]byte) func(a, b int) int {
		return func(a, b int) int { return bytes.Compare(s[a], s[b]) }
	}

	switch col {
	case colBlockNumber:
		return u32(c.blockNumber)
	case colTransactionIndex:
		return u32(c.transactionIndex)
	case colLogIndex:
		return u32(c.logIndex)
	case colTransactionHash:
		return bin(c.transactionHash)
	case colAddress:
		return bin(c.address)
	case colTopic0, colTopic1, colTopic2, colTopic3:
		return bin(c.topics[col-colTopic0])
	case colData:
		return bin(c.data)
	default:
		return func(a, b int) int { return 0 }
	}
}

func (c *LogColumns) buildColumn(col logColumn, order []int, mem memory.Allocator) arrow.Array {
	switch col {
	case colBlockNumber:
		return buildUint32(c.blockNumber, order, mem)
	case colTransactionIndex:
		return buildUint32(c.transactionIndex, order, mem)
	case colLogIndex:
		return buildUint32(c.logIndex, order, mem)
	case colTransactionHash:
		return buildBinary(c.transactionHash, order, mem)
	case colAddress:
		return buildBinary(c.address, order, mem)
	case colTopic0, colTopic1, colTopic2, colTopic3:
		return buildBinary(c.topics[col-colTopic0], order, mem)
	case colData:
		return buildBinary(c.data, order, mem)
	default:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		for i := range c.chainIDs {
			b.Append(c.chainIDs[at(order, i)])
		}
		return b.NewArray()
	}
}

// at maps output row i to its source row
func at(order []int, i int) int {
	if order == nil {
		return i
	}
	return order[i]
}

func buildUint32(values []uint32, order []int, mem memory.Allocator) arrow.Array {
	b := array.NewUint32Builder(mem)
	defer b.Release()
	b.Reserve(len(values))
	for i := range values {
		b.Append(values[at(order, i)])
	}
	return b.NewArray()
}

func buildBinary(values [][]byte, order []int, mem memory.Allocator) arrow.Array {
	b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer b.Release()
	b.Reserve(len(values))
	for i := range values {
		v := values[at(order, i)]
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return b.NewArray()
}

// buildEventColumn places values on their rows, rows without a value are null
func buildEventColumn(values []decoder.Value, rows []int, nRows int, order []int, mem memory.Allocator) arrow.Array {
	ct := schema.String
	if len(values) > 0 {
		ct = EventColumnType(values[0].Kind)
	}

	byRow := make([]int, nRows)
	for i := range byRow {
		byRow[i] = -1
	}
	for j, row := range rows {
		if row >= 0 && row < nRows {
			byRow[row] = j
		}
	}

	var b array.Builder
	switch ct {
	case schema.Binary:
		b = array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	case schema.Boolean:
		b = array.NewBooleanBuilder(mem)
	default:
		b = array.NewStringBuilder(mem)
	}
	defer b.Release()

	for i := 0; i < nRows; i++ {
		j := byRow[at(order, i)]
		if j < 0 {
			b.AppendNull()
			continue
		}
		v := values[j]
		switch bb := b.(type) {
		case *array.BinaryBuilder:
			bb.Append(v.Bytes)
		case *array.BooleanBuilder:
			bb.Append(v.Bool)
		case *array.StringBuilder:
			bb.Append(v.String())
		}
	}
	return b.NewArray()
}
