// Package query bundles everything a freeze job needs to know about what to
// extract
package query

import (
	"errors"
	"fmt"

	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/schema"
)

var (
	ErrNoDatatypes  = errors.New("query has no datatypes")
	ErrNoPartitions = errors.New("query has no partitions")
)

// Query is the immutable description of a job
type Query struct {
	Datatypes  []schema.Datatype
	Schemas    schema.Schemas
	Partitions []partition.Partition
}

func (q *Query) Validate() error {
	if len(q.Datatypes) == 0 {
		return ErrNoDatatypes
	}
	if len(q.Partitions) == 0 {
		return ErrNoPartitions
	}
	for _, dt := range q.Datatypes {
		if _, err := q.Schemas.Get(dt); err != nil {
			return err
		}
	}
	for i := range q.Partitions {
		if err := q.Partitions[i].Validate(); err != nil {
			return fmt.Errorf("partition %d: %w", i, err)
		}
	}
	return nil
}
