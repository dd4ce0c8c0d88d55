package publisher

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/openfga/scientist/pkg/experiment"
)

// Multi publishes every result to all of its publishers concurrently. A
// failing publisher does not stop the others; all of their errors are joined.
type Multi[T, C any] struct {
	publishers []experiment.Publisher[T, C]
}

var _ experiment.Publisher[int, int] = (*Multi[int, int])(nil)

func NewMulti[T, C any](publishers ...experiment.Publisher[T, C]) *Multi[T, C] {
	return &Multi[T, C]{publishers: publishers}
}

func (m *Multi[T, C]) Publish(ctx context.Context, result *experiment.Result[T, C]) error {
	errs := make([]error, len(m.publishers))

	var g errgroup.Group
	for i, p := range m.publishers {
		g.Go(func() error {
			errs[i] = safePublish(ctx, p, result)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
