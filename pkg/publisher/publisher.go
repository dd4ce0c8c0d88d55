package publisher

import (
	"context"
	"runtime/debug"

	"github.com/openfga/scientist/pkg/experiment"
)

// safePublish calls p and turns a panic into an *experiment.PanicError.
func safePublish[T, C any](ctx context.Context, p experiment.Publisher[T, C], result *experiment.Result[T, C]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &experiment.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return p.Publish(ctx, result)
}
