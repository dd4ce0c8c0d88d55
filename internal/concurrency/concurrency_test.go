package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBatch(t *testing.T) {
	t.Run("preserves_input_order", func(t *testing.T) {
		items := []int{5, 1, 4, 2, 3}
		out := Batch(context.Background(), items, 2, func(_ context.Context, i int) int {
			time.Sleep(time.Duration(i) * time.Millisecond)
			return i * 10
		})
		require.Equal(t, []int{50, 10, 40, 20, 30}, out)
	})

	t.Run("empty_input", func(t *testing.T) {
		out := Batch(context.Background(), []int{}, 3, func(_ context.Context, i int) int { return i })
		require.Empty(t, out)
	})

	t.Run("size_below_one_runs_sequentially", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		Batch(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, i int) int {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return i
		})
		require.Equal(t, int32(1), peak.Load())
	})

	t.Run("items_of_a_batch_overlap_and_batches_do_not", func(t *testing.T) {
		type window struct{ start, end time.Time }
		var mu sync.Mutex
		windows := map[int]window{}

		// each item of a batch waits for its partner, which only succeeds if
		// both run at the same time
		barriers := []*sync.WaitGroup{{}, {}}
		barriers[0].Add(2)
		barriers[1].Add(2)

		Batch(context.Background(), []int{0, 1, 2, 3}, 2, func(_ context.Context, i int) int {
			start := time.Now()
			barriers[i/2].Done()
			barriers[i/2].Wait()
			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			windows[i] = window{start: start, end: time.Now()}
			mu.Unlock()
			return i
		})

		require.Len(t, windows, 4)
		firstEnd := windows[0].end
		if windows[1].end.After(firstEnd) {
			firstEnd = windows[1].end
		}
		require.False(t, windows[2].start.Before(firstEnd))
		require.False(t, windows[3].start.Before(firstEnd))
	})

	t.Run("passes_context_through", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out := Batch(ctx, []int{1, 2}, 2, func(ctx context.Context, _ int) error {
			return ctx.Err()
		})
		require.Equal(t, []error{context.Canceled, context.Canceled}, out)
	})
}

func TestChunks(t *testing.T) {
	require.Equal(t, 2, Chunks(4, 2))
	require.Equal(t, 3, Chunks(5, 2))
	require.Equal(t, 0, Chunks(0, 2))
	require.Equal(t, 3, Chunks(3, 0))
}
