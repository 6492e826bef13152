// Package datasets extracts on-chain entities into typed columns. Each
// dataset declares its columns, collects raw records through one of its
// strategies, and converts the accumulated columns into an arrow record.
package datasets

import (
	"errors"
	"fmt"

	"github.com/flashbots/cryo-go/schema"
)

var ErrUnsupportedDatatype = errors.New("datatype has no dataset")

// Dataset describes the columns of one datatype. All methods are pure.
type Dataset = schema.Descriptor

var registry = map[schema.Datatype]Dataset{
	schema.Logs: Logs{},
}

func Get(dt schema.Datatype) (Dataset, error) {
	d, ok := registry[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatatype, dt)
	}
	return d, nil
}
