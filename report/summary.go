// Package report records the outcome of a freeze job in a versioned,
// timestamped json file
package report

import (
	"github.com/flashbots/cryo-go/partition"
)

// ErroredPartition is a failed unit of work. Partition is nil when the
// failure happened before a partition was known.
type ErroredPartition struct {
	Partition *partition.Partition
	Err       error
}

// FreezeSummary is the outcome of every attempted partition of a job. It is
// built by a single goroutine; the order of entries carries no meaning.
type FreezeSummary struct {
	Completed []partition.Partition
	Errored   []ErroredPartition
	Skipped   []partition.Partition

	NRows        uint64
	BytesWritten int64
}

func (s *FreezeSummary) AddCompleted(p partition.Partition, nRows uint64, bytesWritten int64) {
	s.Completed = append(s.Completed, p)
	s.NRows += nRows
	s.BytesWritten += bytesWritten
}

func (s *FreezeSummary) AddErrored(p *partition.Partition, err error) {
	s.Errored = append(s.Errored, ErroredPartition{Partition: p, Err: err})
}

func (s *FreezeSummary) AddSkipped(p partition.Partition) {
	s.Skipped = append(s.Skipped, p)
}

// NAttempted counts partitions with an outcome
func (s *FreezeSummary) NAttempted() int {
	return len(s.Completed) + len(s.Errored) + len(s.Skipped)
}
