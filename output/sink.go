// Package output names and writes the files produced for each partition
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/query"
	"github.com/flashbots/cryo-go/schema"
)

var (
	ErrUnsupportedFileFormat = errors.New("unsupported file format")
	ErrUnsupportedCompress   = errors.New("unsupported compression")
	ErrOutputExists          = errors.New("output file already exists")
)

type Format string

const (
	Parquet Format = "parquet"
	CSV     Format = "csv"
	JSON    Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Parquet, CSV, JSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileFormat, s)
}

func (f Format) Ext() string {
	return string(f)
}

// FileOutput is the file sink of a job
type FileOutput struct {
	OutputDir string
	// Prefix is usually the network name
	Prefix string
	Suffix string
	Format Format
	// Overwrite replaces existing files instead of skipping their partitions
	Overwrite    bool
	RowGroupSize int64
	Compression  string
}

// GetPaths returns the output file of every datatype of the query for one
// partition: <dir>/<prefix>__<datatype>__<label>[__<suffix>].<ext>
func (o *FileOutput) GetPaths(q *query.Query, p *partition.Partition) map[schema.Datatype]string {
	paths := make(map[schema.Datatype]string, len(q.Datatypes))
	for _, dt := range q.Datatypes {
		paths[dt] = o.Path(dt, p)
	}
	return paths
}

func (o *FileOutput) Path(dt schema.Datatype, p *partition.Partition) string {
	parts := make([]string, 0, 4)
	if o.Prefix != "" {
		parts = append(parts, o.Prefix)
	}
	parts = append(parts, dt.String(), p.Label())
	if o.Suffix != "" {
		parts = append(parts, o.Suffix)
	}
	return filepath.Join(o.OutputDir, strings.Join(parts, "__")+"."+o.Format.Ext())
}

// PathList flattens GetPaths in the query's datatype order
func (o *FileOutput) PathList(q *query.Query, p *partition.Partition) []string {
	paths := o.GetPaths(q, p)
	list := make([]string, 0, len(paths))
	for _, dt := range q.Datatypes {
		list = append(list, paths[dt])
	}
	return list
}

// Exists reports whether every output file of the partition is already there
func (o *FileOutput) Exists(q *query.Query, p *partition.Partition) bool {
	for _, fn := range o.PathList(q, p) {
		if _, err := os.Stat(fn); err != nil {
			return false
		}
	}
	return true
}
