package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Batch applies fn to every item, size items at a time. All items of a batch
// run concurrently and the next batch starts only after the whole batch has
// returned, so at most size calls of fn are ever in flight. The results are
// returned in the order of items regardless of completion order.
//
// Batch does not stop early when ctx is done; fn is expected to observe ctx
// itself. A size below 1 is treated as 1.
func Batch[In, Out any](ctx context.Context, items []In, size int, fn func(context.Context, In) Out) []Out {
	if size < 1 {
		size = 1
	}

	out := make([]Out, len(items))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))

		p := pool.New().WithMaxGoroutines(end - start)
		for i := start; i < end; i++ {
			p.Go(func() {
				out[i] = fn(ctx, items[i])
			})
		}
		p.Wait()
	}

	return out
}

// Chunks returns the number of batches Batch runs for n items.
func Chunks(n, size int) int {
	if size < 1 {
		size = 1
	}
	return (n + size - 1) / size
}
