package datasets

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/schema"
	"github.com/flashbots/cryo-go/source"
	"go.uber.org/zap"
)

type CollectOpts struct {
	Log       *zap.SugaredLogger
	Source    *source.Source
	Schemas   schema.Schemas
	Allocator memory.Allocator
}

// Collect extracts one partition of a datatype into a fresh accumulator and
// returns it as an arrow record. Transport errors are returned as is.
func Collect(ctx context.Context, dt schema.Datatype, p *partition.Partition, opts CollectOpts) (arrow.Record, error) {
	table, err := opts.Schemas.Get(dt)
	if err != nil {
		return nil, err
	}

	switch dt {
	case schema.Logs:
		cols, err := CollectLogs(ctx, p, opts.Source, table)
		if err != nil {
			return nil, err
		}
		return cols.ToRecord(table, opts.Allocator, opts.Log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatatype, dt)
	}
}

// CollectLogs runs every request of the partition with the strategy matching
// its kind
func CollectLogs(ctx context.Context, p *partition.Partition, src *source.Source, table *schema.Table) (*LogColumns, error) {
	cols := NewLogColumns(table, src.ChainID)

	var strategy Strategy[[]source.RawLog, *LogColumns] = LogsByBlock{}
	if p.Kind() == partition.ByTransaction {
		strategy = LogsByTransaction{}
	}
	if err := runRequests(ctx, strategy, p.Requests(), src, cols, table); err != nil {
		return nil, err
	}
	return cols, nil
}
