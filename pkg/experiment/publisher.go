//go:generate mockgen -source publisher.go -destination ../../internal/mocks/mock_publisher.go -package mocks Publisher
package experiment

import (
	"context"
)

// Publisher receives every Result. Publish is called synchronously from
// Experiment.Run; wrap a publisher with publisher.FireAndForget to take it off
// the caller's path.
type Publisher[T, C any] interface {
	Publish(ctx context.Context, result *Result[T, C]) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc[T, C any] func(ctx context.Context, result *Result[T, C]) error

func (f PublisherFunc[T, C]) Publish(ctx context.Context, result *Result[T, C]) error {
	return f(ctx, result)
}

type nopPublisher[T, C any] struct{}

func (nopPublisher[T, C]) Publish(context.Context, *Result[T, C]) error {
	return nil
}

// NopPublisher discards every result.
func NopPublisher[T, C any]() Publisher[T, C] {
	return nopPublisher[T, C]{}
}
