// Package freeze runs a job: every partition of a query is collected by a
// pool of workers, written to the sink and accounted in the run report.
package freeze

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/datasets"
	"github.com/flashbots/cryo-go/metrics"
	"github.com/flashbots/cryo-go/output"
	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/query"
	"github.com/flashbots/cryo-go/report"
	"github.com/flashbots/cryo-go/source"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrInterrupted = errors.New("freeze interrupted")
	ErrMissingOpts = errors.New("query, source and sink are required")
)

const defaultMaxConcurrentPartitions = 4

type Opts struct {
	Log    *zap.SugaredLogger
	Query  *query.Query
	Source *source.Source
	Sink   *output.FileOutput
	Env    *report.ExecutionEnv

	MaxConcurrentPartitions int
}

// Freezer runs one job. It is not reusable.
type Freezer struct {
	log   *zap.SugaredLogger
	opts  Opts
	runID string

	// partition durations in ms, only touched by the aggregating goroutine
	durations *hdrhistogram.Histogram
	duration  time.Duration
	summary   *report.FreezeSummary

	// progress, readable while running
	inFlight   atomic.Int64
	nCompleted atomic.Int64
	nErrored   atomic.Int64
	nSkipped   atomic.Int64
	nRows      atomic.Uint64
}

func New(opts Opts) (*Freezer, error) {
	if opts.Query == nil || opts.Source == nil || opts.Sink == nil {
		return nil, ErrMissingOpts
	}
	if err := opts.Query.Validate(); err != nil {
		return nil, fmt.Errorf("Query.Validate: %w", err)
	}
	if opts.Log == nil {
		opts.Log = common.NopLogger()
	}
	if opts.Env == nil {
		opts.Env = &report.ExecutionEnv{TStart: time.Now()} //nolint:exhaustruct
	}
	if opts.MaxConcurrentPartitions <= 0 {
		opts.MaxConcurrentPartitions = defaultMaxConcurrentPartitions
	}

	runID := uuid.New().String()
	return &Freezer{ //nolint:exhaustruct
		log:       opts.Log.With("run", runID),
		opts:      opts,
		runID:     runID,
		durations: hdrhistogram.New(1, 3_600_000, 3),
	}, nil
}

// Run is New followed by Freezer.Run
func Run(ctx context.Context, opts Opts) (*report.FreezeSummary, error) {
	f, err := New(opts)
	if err != nil {
		return nil, err
	}
	return f.Run(ctx)
}

func (f *Freezer) RunID() string {
	return f.runID
}

// outcome is what a worker reports for one partition
type outcome struct {
	partition    *partition.Partition
	nRows        uint64
	bytesWritten int64
	duration     time.Duration
	err          error
}

// Run collects every partition that has no output yet. Partition failures
// are recorded in the summary, not returned. The returned error is a report
// failure or ErrInterrupted, in which case the summary is partial and only
// the incomplete report is left behind.
func (f *Freezer) Run(ctx context.Context) (*report.FreezeSummary, error) {
	tStart := time.Now()
	q, sink, env := f.opts.Query, f.opts.Sink, f.opts.Env

	summary := &report.FreezeSummary{} //nolint:exhaustruct
	f.summary = summary
	pending := f.plan(summary)

	f.log.Infow("Starting freeze",
		"datatypes", q.Datatypes,
		"partitions", len(q.Partitions),
		"pending", len(pending),
		"skipped", len(summary.Skipped),
		"outputDir", sink.OutputDir,
		"workers", min(f.opts.MaxConcurrentPartitions, len(pending)),
	)

	if len(pending) == 0 {
		f.log.Info("All partitions already collected")
		return summary, f.finish(summary, tStart)
	}

	// mark the run as started, the file is removed once the final report is written
	if fn, err := report.WriteReport(env, q, sink, nil); err != nil {
		f.log.Errorw("report.WriteReport", "error", err, "complete", false)
	} else {
		f.log.Debugw("Wrote incomplete report", "file", fn)
	}

	f.collect(ctx, pending, summary)

	notAttempted := len(pending) - len(summary.Completed) - len(summary.Errored)
	if notAttempted > 0 {
		f.duration = time.Since(tStart)
		f.log.Warnw("Freeze interrupted",
			"completed", len(summary.Completed),
			"errored", len(summary.Errored),
			"notAttempted", notAttempted,
			"duration", common.FmtDuration(f.duration),
		)
		return summary, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
	return summary, f.finish(summary, tStart)
}

// plan marks partitions with existing outputs as skipped and returns the rest
func (f *Freezer) plan(summary *report.FreezeSummary) []*partition.Partition {
	q, sink := f.opts.Query, f.opts.Sink
	pending := make([]*partition.Partition, 0, len(q.Partitions))
	for i := range q.Partitions {
		p := &q.Partitions[i]
		if !sink.Overwrite && sink.Exists(q, p) {
			summary.AddSkipped(*p)
			continue
		}
		pending = append(pending, p)
	}
	f.nSkipped.Store(int64(len(summary.Skipped)))
	metrics.AddPartitionsSkipped(len(summary.Skipped))
	return pending
}

// collect fans partitions out to the workers and merges their outcomes. It
// is the only writer of the summary.
func (f *Freezer) collect(ctx context.Context, pending []*partition.Partition, summary *report.FreezeSummary) {
	partC := make(chan *partition.Partition)
	respC := make(chan outcome, 100)

	var wg sync.WaitGroup
	for i, n := 0, min(f.opts.MaxConcurrentPartitions, len(pending)); i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range partC {
				respC <- f.freezePartition(ctx, p)
			}
		}()
	}

	// feed partitions until done or cancelled
	go func() {
		defer close(partC)
		for _, p := range pending {
			if ctx.Err() != nil {
				return
			}
			select {
			case partC <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(respC)
	}()

	for res := range respC {
		if res.err != nil {
			summary.AddErrored(res.partition, res.err)
			f.nErrored.Inc()
			metrics.IncPartitionErrored()
			f.log.Errorw("Partition failed", "partition", res.partition.Label(), "error", res.err)
		} else {
			summary.AddCompleted(*res.partition, res.nRows, res.bytesWritten)
			f.nCompleted.Inc()
			f.nRows.Add(res.nRows)
			metrics.IncPartitionCompleted()
			_ = f.durations.RecordValue(res.duration.Milliseconds())
		}

		done := len(summary.Completed) + len(summary.Errored)
		f.log.Infow(common.Printer.Sprintf("- partitions %d / %d", done, len(pending)),
			"partition", res.partition.Label(),
			"rows", res.nRows,
			"inFlight", f.inFlight.Load(),
			"memUsed", common.GetMemUsageHuman(),
		)
	}
}

// freezePartition collects and writes every datatype of one partition
func (f *Freezer) freezePartition(ctx context.Context, p *partition.Partition) (res outcome) {
	f.inFlight.Inc()
	defer f.inFlight.Dec()

	res.partition = p
	tStart := time.Now()
	defer func() {
		res.duration = time.Since(tStart)
	}()

	if err := p.Validate(); err != nil {
		res.err = err
		return res
	}

	log := f.log.With("partition", p.Label())
	collectOpts := datasets.CollectOpts{ //nolint:exhaustruct
		Log:     log,
		Source:  f.opts.Source,
		Schemas: f.opts.Query.Schemas,
	}

	for _, dt := range f.opts.Query.Datatypes {
		tCollect := time.Now()
		rec, err := datasets.Collect(ctx, dt, p, collectOpts)
		if err != nil {
			res.err = fmt.Errorf("collect %s: %w", dt, err)
			return res
		}

		nRows := uint64(rec.NumRows())
		fn := f.opts.Sink.Path(dt, p)
		n, err := f.opts.Sink.Write(rec, fn)
		rec.Release()
		if err != nil {
			res.err = fmt.Errorf("write %s: %w", dt, err)
			return res
		}

		res.nRows += nRows
		res.bytesWritten += n
		metrics.AddRowsCollected(dt.String(), nRows)
		metrics.AddBytesWritten(dt.String(), n)
		metrics.ObservePartitionDuration(dt.String(), time.Since(tCollect).Seconds())
		log.Debugw("Wrote partition", "datatype", dt, "file", fn, "rows", nRows, "size", common.HumanBytes(uint64(n)))
	}
	return res
}

// finish writes the final report and removes the incomplete one
func (f *Freezer) finish(summary *report.FreezeSummary, tStart time.Time) error {
	env, q, sink := f.opts.Env, f.opts.Query, f.opts.Sink
	f.duration = time.Since(tStart)

	fn, err := report.WriteReport(env, q, sink, summary)
	if err != nil {
		f.log.Errorw("report.WriteReport", "error", err, "complete", true)
		return err
	}
	if err = report.RemoveIncompleteReport(env, sink); err != nil {
		f.log.Errorw("report.RemoveIncompleteReport", "error", err)
		return err
	}

	f.log.Infow("Freeze done",
		"report", fn,
		"completed", len(summary.Completed),
		"errored", len(summary.Errored),
		"skipped", len(summary.Skipped),
		"rows", common.Printer.Sprintf("%d", summary.NRows),
		"written", common.HumanBytes(uint64(summary.BytesWritten)),
		"duration", common.FmtDuration(f.duration),
	)
	return nil
}

type Progress struct {
	RunID      string `json:"run_id"`
	Partitions int    `json:"partitions"`
	Completed  int64  `json:"completed"`
	Errored    int64  `json:"errored"`
	Skipped    int64  `json:"skipped"`
	InFlight   int64  `json:"in_flight"`
	Rows       uint64 `json:"rows"`
}

// Progress is safe to call while Run is in progress
func (f *Freezer) Progress() Progress {
	return Progress{
		RunID:      f.runID,
		Partitions: len(f.opts.Query.Partitions),
		Completed:  f.nCompleted.Load(),
		Errored:    f.nErrored.Load(),
		Skipped:    f.nSkipped.Load(),
		InFlight:   f.inFlight.Load(),
		Rows:       f.nRows.Load(),
	}
}
