package experiment

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/openfga/scientist/internal/errors"
)

// Observation is the captured outcome of one execution of a behavior. Exactly
// one of the value or the error is meaningful; a cancelled observation carries
// the context error that cancelled it.
type Observation[T any] struct {
	name      string
	duration  time.Duration
	value     T
	err       error
	cancelled bool
}

func (o *Observation[T]) Name() string {
	return o.name
}

// Duration is the wall-clock time spent in the behavior, measured with the
// monotonic clock.
func (o *Observation[T]) Duration() time.Duration {
	return o.duration
}

func (o *Observation[T]) Value() T {
	return o.value
}

func (o *Observation[T]) Err() error {
	return o.err
}

// Thrown reports whether the behavior failed with an error other than its own cancellation.
func (o *Observation[T]) Thrown() bool {
	return o.err != nil && !o.cancelled
}

// Cancelled reports whether the behavior was aborted through its context.
func (o *Observation[T]) Cancelled() bool {
	return o.cancelled
}

// capture runs b and records its outcome. It never panics and never returns
// the behavior's error; everything ends up in the observation. A behavior
// whose context is already done is not invoked at all.
func capture[T any](ctx context.Context, b NamedBehavior[T]) (obs *Observation[T]) {
	ctx = b.context(ctx)
	obs = &Observation[T]{name: b.Name}

	start := time.Now()
	if err := ctx.Err(); err != nil {
		obs.cancelled = true
		obs.err = err
		obs.duration = time.Since(start)
		return obs
	}

	defer func() {
		if r := recover(); r != nil {
			obs.err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		obs.duration = time.Since(start)
	}()

	value, err := b.Run(ctx)
	switch {
	case err == nil:
		obs.value = value
	case ctx.Err() != nil && errors.IsContextError(err):
		obs.cancelled = true
		obs.err = err
	default:
		obs.err = errors.Canonical(err)
	}

	return obs
}
