package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/cryo-go/common"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const defaultRowGroupSize = 128 * 1024 * 1024 // 128M

// Write stores the record at path in the sink's format and returns the
// number of bytes written. Data goes to <path>.tmp first and is renamed
// into place when complete.
func (o *FileOutput) Write(rec arrow.Record, path string) (int64, error) {
	if !o.Overwrite && common.FileExists(path) {
		return 0, fmt.Errorf("%w: %s", ErrOutputExists, path)
	}
	if err := os.MkdirAll(o.OutputDir, 0o755); err != nil {
		return 0, fmt.Errorf("os.MkdirAll: %w", err)
	}

	var err error
	switch o.Format {
	case Parquet:
		err = o.writeParquet(rec, path)
	case CSV:
		err = common.WriteAtomic(path, func(f *os.File) error {
			w := bufio.NewWriter(f)
			if err := writeCSV(rec, w); err != nil {
				return err
			}
			return w.Flush()
		})
	case JSON:
		err = common.WriteAtomic(path, func(f *os.File) error {
			w := bufio.NewWriter(f)
			if err := writeJSON(rec, w); err != nil {
				return err
			}
			return w.Flush()
		})
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFileFormat, o.Format)
	}
	if err != nil {
		return 0, err
	}

	s, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("os.Stat: %w", err)
	}
	return s.Size(), nil
}

func compressionCodec(s string) (parquet.CompressionCodec, error) {
	switch strings.ToLower(s) {
	case "", "gzip":
		return parquet.CompressionCodec_GZIP, nil
	case "snappy":
		return parquet.CompressionCodec_SNAPPY, nil
	case "zstd":
		return parquet.CompressionCodec_ZSTD, nil
	case "none", "uncompressed":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedCompress, s)
}

// parquetMetadata builds the CSV writer schema from the arrow schema
func parquetMetadata(sc *arrow.Schema) ([]string, error) {
	md := make([]string, 0, sc.NumFields())
	for _, f := range sc.Fields() {
		var typ string
		switch f.Type.ID() {
		case arrow.UINT32:
			typ = "type=INT32, convertedtype=UINT_32"
		case arrow.UINT64:
			typ = "type=INT64, convertedtype=UINT_64"
		case arrow.INT64:
			typ = "type=INT64"
		case arrow.BINARY:
			typ = "type=BYTE_ARRAY"
		case arrow.STRING:
			typ = "type=BYTE_ARRAY, convertedtype=UTF8"
		case arrow.BOOL:
			typ = "type=BOOLEAN"
		default:
			return nil, fmt.Errorf("%w: column %s has type %s", ErrUnsupportedFileFormat, f.Name, f.Type)
		}
		repetition := "REQUIRED"
		if f.Nullable {
			repetition = "OPTIONAL"
		}
		md = append(md, fmt.Sprintf("name=%s, %s, repetitiontype=%s", f.Name, typ, repetition))
	}
	return md, nil
}

func (o *FileOutput) writeParquet(rec arrow.Record, path string) error {
	md, err := parquetMetadata(rec.Schema())
	if err != nil {
		return err
	}
	codec, err := compressionCodec(o.Compression)
	if err != nil {
		return err
	}

	tmpFn := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmpFn)
	if err != nil {
		return fmt.Errorf("parquet.NewLocalFileWriter: %w", err)
	}
	fail := func(err error) error {
		_ = fw.Close()
		_ = os.Remove(tmpFn)
		return err
	}

	pw, err := writer.NewCSVWriter(md, fw, 4)
	if err != nil {
		return fail(fmt.Errorf("parquet.NewCSVWriter: %w", err))
	}
	pw.RowGroupSize = defaultRowGroupSize
	if o.RowGroupSize > 0 {
		pw.RowGroupSize = o.RowGroupSize
	}
	pw.CompressionType = codec

	for i := 0; i < int(rec.NumRows()); i++ {
		// the writer buffers rows until the row group is flushed
		row := make([]interface{}, rec.NumCols())
		for j, col := range rec.Columns() {
			row[j] = parquetValue(col, i)
		}
		if err = pw.Write(row); err != nil {
			return fail(fmt.Errorf("parquet.Write: %w", err))
		}
	}
	if err = pw.WriteStop(); err != nil {
		return fail(fmt.Errorf("parquet.WriteStop: %w", err))
	}
	if err = fw.Close(); err != nil {
		_ = os.Remove(tmpFn)
		return fmt.Errorf("fw.Close: %w", err)
	}
	if err = os.Rename(tmpFn, path); err != nil {
		_ = os.Remove(tmpFn)
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}

// parquetValue converts a cell to the go type the CSV marshaller expects
func parquetValue(col arrow.Array, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Uint32:
		return int32(a.Value(i))
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.String:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	}
	return nil
}

// textValue renders a cell for csv. Binary is 0x-prefixed hex, null is empty.
func textValue(col arrow.Array, i int) string {
	if col.IsNull(i) {
		return ""
	}
	switch a := col.(type) {
	case *array.Uint32:
		return strconv.FormatUint(uint64(a.Value(i)), 10)
	case *array.Uint64:
		return strconv.FormatUint(a.Value(i), 10)
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10)
	case *array.Binary:
		return hexutil.Encode(a.Value(i))
	case *array.String:
		return a.Value(i)
	case *array.Boolean:
		return strconv.FormatBool(a.Value(i))
	}
	return col.ValueStr(i)
}

func writeCSV(rec arrow.Record, w *bufio.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, rec.NumCols())
	for j := range header {
		header[j] = rec.ColumnName(j)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv.Write: %w", err)
	}

	row := make([]string, rec.NumCols())
	for i := 0; i < int(rec.NumRows()); i++ {
		for j, col := range rec.Columns() {
			row[j] = textValue(col, i)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv.Write: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonValue keeps numbers and booleans native, binary as hex, null as null
func jsonValue(col arrow.Array, i int) interface{} {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	}
	return textValue(col, i)
}

// writeJSON writes the record as an array of row objects, keys in column order
func writeJSON(rec arrow.Record, w *bufio.Writer) error {
	keys := make([][]byte, rec.NumCols())
	for j := range keys {
		k, err := json.Marshal(rec.ColumnName(j))
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		keys[j] = k
	}

	if _, err := w.WriteString("["); err != nil {
		return err
	}
	for i := 0; i < int(rec.NumRows()); i++ {
		if i > 0 {
			_ = w.WriteByte(',')
		}
		_ = w.WriteByte('{')
		for j, col := range rec.Columns() {
			if j > 0 {
				_ = w.WriteByte(',')
			}
			v, err := json.Marshal(jsonValue(col, i))
			if err != nil {
				return fmt.Errorf("json.Marshal: %w", err)
			}
			_, _ = w.Write(keys[j])
			_ = w.WriteByte(':')
			_, _ = w.Write(v)
		}
		_ = w.WriteByte('}')
	}
	_, err := w.WriteString("]\n")
	return err
}
