package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/query"
	"github.com/flashbots/cryo-go/schema"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func testRecord(t *testing.T) arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()

	bn := array.NewUint32Builder(mem)
	defer bn.Release()
	bn.AppendValues([]uint32{10, 11}, nil)

	topic := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer topic.Release()
	topic.Append([]byte{0xab, 0xcd})
	topic.AppendNull()

	value := array.NewStringBuilder(mem)
	defer value.Release()
	value.AppendValues([]string{"1000", "7"}, nil)

	cols := []arrow.Array{bn.NewArray(), topic.NewArray(), value.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	sc := arrow.NewSchema([]arrow.Field{
		{Name: "block_number", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "topic1", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "Transfer.value", Type: arrow.BinaryTypes.String},
	}, nil)
	return array.NewRecord(sc, cols, 2)
}

func testQuery() *query.Query {
	return &query.Query{ //nolint:exhaustruct
		Datatypes: []schema.Datatype{schema.Logs},
	}
}

func TestPaths(t *testing.T) {
	o := &FileOutput{OutputDir: "/data", Prefix: "ethereum", Format: Parquet} //nolint:exhaustruct
	p := &partition.Partition{BlockRanges: []partition.BlockRange{{Start: 100, End: 199}}} //nolint:exhaustruct

	paths := o.GetPaths(testQuery(), p)
	require.Equal(t, map[schema.Datatype]string{
		schema.Logs: "/data/ethereum__logs__00000100_to_00000199.parquet",
	}, paths)

	o.Suffix = "v2"
	o.Format = CSV
	require.Equal(t, []string{"/data/ethereum__logs__00000100_to_00000199__v2.csv"}, o.PathList(testQuery(), p))

	tx := &partition.Partition{TransactionHashes: []common.Hash{{0x01}}} //nolint:exhaustruct
	o = &FileOutput{OutputDir: "out", Format: JSON} //nolint:exhaustruct
	require.Equal(t, filepath.Join("out", "logs__"+tx.Label()+".json"), o.Path(schema.Logs, tx))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	require.Equal(t, Parquet, f)

	_, err = ParseFormat("xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFileFormat)
}

func TestWriteCSV(t *testing.T) {
	rec := testRecord(t)
	defer rec.Release()

	dir := t.TempDir()
	o := &FileOutput{OutputDir: dir, Format: CSV} //nolint:exhaustruct
	fn := filepath.Join(dir, "logs.csv")
	n, err := o.Write(rec, fn)
	require.NoError(t, err)
	require.Positive(t, n)
	require.NoFileExists(t, fn+".tmp")

	f, err := os.Open(fn)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"block_number", "topic1", "Transfer.value"},
		{"10", "0xabcd", "1000"},
		{"11", "", "7"},
	}, rows)

	// existing files are not replaced unless overwrite is set
	_, err = o.Write(rec, fn)
	require.ErrorIs(t, err, ErrOutputExists)
	o.Overwrite = true
	_, err = o.Write(rec, fn)
	require.NoError(t, err)
}

func TestWriteJSON(t *testing.T) {
	rec := testRecord(t)
	defer rec.Release()

	dir := t.TempDir()
	o := &FileOutput{OutputDir: dir, Format: JSON} //nolint:exhaustruct
	fn := filepath.Join(dir, "logs.json")
	_, err := o.Write(rec, fn)
	require.NoError(t, err)

	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, `[{"block_number":10,"topic1":"0xabcd","Transfer.value":"1000"},{"block_number":11,"topic1":null,"Transfer.value":"7"}]`+"\n", string(data))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
}

func TestWriteParquet(t *testing.T) {
	rec := testRecord(t)
	defer rec.Release()

	dir := t.TempDir()
	o := &FileOutput{OutputDir: dir, Format: Parquet, Compression: "snappy"} //nolint:exhaustruct
	q := testQuery()
	p := &partition.Partition{BlockRanges: []partition.BlockRange{{Start: 10, End: 11}}} //nolint:exhaustruct
	require.False(t, o.Exists(q, p))

	fn := o.Path(schema.Logs, p)
	_, err := o.Write(rec, fn)
	require.NoError(t, err)
	require.True(t, o.Exists(q, p))

	fr, err := local.NewLocalFileReader(fn)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())
}

func TestParquetMetadata(t *testing.T) {
	rec := testRecord(t)
	defer rec.Release()

	md, err := parquetMetadata(rec.Schema())
	require.NoError(t, err)
	require.Equal(t, []string{
		"name=block_number, type=INT32, convertedtype=UINT_32, repetitiontype=REQUIRED",
		"name=topic1, type=BYTE_ARRAY, repetitiontype=OPTIONAL",
		"name=Transfer.value, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED",
	}, md)

	_, err = compressionCodec("lzma")
	require.ErrorIs(t, err, ErrUnsupportedCompress)
}
