package datasets

import (
	"context"
	"errors"

	"github.com/flashbots/cryo-go/partition"
	"github.com/flashbots/cryo-go/schema"
	"github.com/flashbots/cryo-go/source"
)

var errParamsMismatch = errors.New("request params do not match the strategy")

// Strategy fetches the raw response R of one request and folds it into the
// columns C. Transform is synchronous so a batch is never half applied.
type Strategy[R, C any] interface {
	Extract(ctx context.Context, params partition.Params, src *source.Source) (R, error)
	Transform(resp R, cols C, table *schema.Table)
}

// runRequests executes every request of a partition into the same columns
func runRequests[R, C any](ctx context.Context, s Strategy[R, C], requests []partition.Params, src *source.Source, cols C, table *schema.Table) error {
	for _, params := range requests {
		resp, err := s.Extract(ctx, params, src)
		if err != nil {
			return err
		}
		s.Transform(resp, cols, table)
	}
	return nil
}
