package mocks

import (
	"context"
	"time"

	"github.com/openfga/scientist/pkg/experiment"
)

// slowPublisher is a proxy to the actual publisher except every Publish is delayed by publishDelay.
// This allows simulating sinks that are slower than the experiment's caller.
type slowPublisher[T, C any] struct {
	publishDelay time.Duration
	experiment.Publisher[T, C]
}

// NewMockSlowPublisher returns a wrapper of a publisher that adds an artificial delay before every publish.
func NewMockSlowPublisher[T, C any](p experiment.Publisher[T, C], publishDelay time.Duration) experiment.Publisher[T, C] {
	return &slowPublisher[T, C]{
		publishDelay: publishDelay,
		Publisher:    p,
	}
}

func (m *slowPublisher[T, C]) Publish(ctx context.Context, result *experiment.Result[T, C]) error {
	timer := time.NewTimer(m.publishDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return m.Publisher.Publish(ctx, result)
}
