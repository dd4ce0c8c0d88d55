package publisher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openfga/scientist/internal/mocks"
	"github.com/openfga/scientist/pkg/experiment"
	"github.com/openfga/scientist/pkg/logger"
)

func TestFireAndForget(t *testing.T) {
	t.Run("returns_before_the_delegate_finishes", func(t *testing.T) {
		sink := NewInMemory[int, int]()
		p := NewFireAndForget(mocks.NewMockSlowPublisher[int, int](sink, 50*time.Millisecond))

		start := time.Now()
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))
		require.Less(t, time.Since(start), 50*time.Millisecond)
		require.Equal(t, 1, p.InFlight())
		require.Zero(t, sink.Len())

		require.NoError(t, p.WhenAllPublished(context.Background()))
		require.Zero(t, p.InFlight())
		require.Equal(t, 1, sink.Len())
	})

	t.Run("survives_caller_cancellation", func(t *testing.T) {
		sink := NewInMemory[int, int]()
		p := NewFireAndForget(mocks.NewMockSlowPublisher[int, int](sink, 20*time.Millisecond), WithErrorPolicy(Rethrow))

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, p.Publish(ctx, newResult(t, "ff", 1, "match")))
		cancel()

		require.NoError(t, p.WhenAllPublished(context.Background()))
		require.Equal(t, 1, sink.Len())
	})

	t.Run("rethrow_surfaces_errors_once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockPublisher[int, int](ctrl)
		delegate.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom).Times(2)

		var handled atomic.Int32
		p := NewFireAndForget[int, int](delegate,
			WithErrorPolicy(Rethrow),
			WithErrorHandler(func(_ context.Context, name string, _ error) {
				if name == "ff" {
					handled.Add(1)
				}
			}),
		)

		result := newResult(t, "ff", 1, "match")
		require.NoError(t, p.Publish(context.Background(), result))
		require.NoError(t, p.Publish(context.Background(), result))

		err := p.WhenAllPublished(context.Background())
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, int32(2), handled.Load())

		require.NoError(t, p.WhenAllPublished(context.Background()))
	})

	t.Run("ignore_logs_and_drops_errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockPublisher[int, int](ctrl)
		delegate.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom)

		log, logs := logger.NewObserverLogger("warn")
		p := NewFireAndForget[int, int](delegate, WithFireAndForgetLogger(log))

		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))
		require.NoError(t, p.WhenAllPublished(context.Background()))

		entries := logs.FilterMessage("background experiment publish failed").All()
		require.Len(t, entries, 1)
		require.Equal(t, "ff", entries[0].ContextMap()["experiment"])
		require.Equal(t, "boom", entries[0].ContextMap()["error"])
	})

	t.Run("ignore_uses_the_logger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockPublisher[int, int](ctrl)
		delegate.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom)
		mockLogger := mocks.NewMockLogger(ctrl)
		mockLogger.EXPECT().WarnWithContext(gomock.Any(), "background experiment publish failed", gomock.Any()).Times(1)

		p := NewFireAndForget[int, int](delegate, WithFireAndForgetLogger(mockLogger))
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))
		require.NoError(t, p.WhenAllPublished(context.Background()))
	})

	t.Run("recovers_panics", func(t *testing.T) {
		p := NewFireAndForget[int, int](experiment.PublisherFunc[int, int](func(context.Context, *experiment.Result[int, int]) error {
			panic("sink")
		}), WithErrorPolicy(Rethrow))

		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))

		var panicErr *experiment.PanicError
		require.ErrorAs(t, p.WhenAllPublished(context.Background()), &panicErr)
		require.Equal(t, "sink", panicErr.Value)
	})

	t.Run("wait_is_bounded_by_its_context", func(t *testing.T) {
		blocking := newBlockingPublisher()
		p := NewFireAndForget[int, int](blocking)
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, p.WhenAllPublished(ctx), context.DeadlineExceeded)
		require.Equal(t, 1, p.InFlight())

		close(blocking.release)
		require.NoError(t, p.WhenAllPublished(context.Background()))
		require.Zero(t, p.InFlight())
	})

	t.Run("publish_timeout", func(t *testing.T) {
		p := NewFireAndForget[int, int](newBlockingPublisher(),
			WithErrorPolicy(Rethrow),
			WithPublishTimeout(10*time.Millisecond),
		)
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))
		require.ErrorIs(t, p.WhenAllPublished(context.Background()), context.DeadlineExceeded)
	})

	t.Run("handler_panic_is_contained", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockPublisher[int, int](ctrl)
		delegate.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom)

		p := NewFireAndForget[int, int](delegate,
			WithErrorPolicy(Rethrow),
			WithErrorHandler(func(_ context.Context, _ string, err error) {
				panic(err)
			}),
		)
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))

		err := p.WhenAllPublished(context.Background())
		require.ErrorIs(t, err, errBoom)
		var panicErr *experiment.PanicError
		require.ErrorAs(t, err, &panicErr)
		require.Equal(t, errBoom, panicErr.Value)
		require.Zero(t, p.InFlight())
	})

	t.Run("handler_panic_is_logged_under_ignore", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockPublisher[int, int](ctrl)
		delegate.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errBoom)

		log, logs := logger.NewObserverLogger("warn")
		p := NewFireAndForget[int, int](delegate,
			WithFireAndForgetLogger(log),
			WithErrorHandler(func(context.Context, string, error) {
				panic("handler")
			}),
		)
		require.NoError(t, p.Publish(context.Background(), newResult(t, "ff", 1, "match")))
		require.NoError(t, p.WhenAllPublished(context.Background()))

		entries := logs.FilterMessage("background experiment publish failed").All()
		require.Len(t, entries, 2)
		require.Equal(t, "boom", entries[0].ContextMap()["error"])
		require.Equal(t, "panic: handler", entries[1].ContextMap()["error"])
	})

	t.Run("as_an_experiment_publisher", func(t *testing.T) {
		sink := NewInMemory[int, int]()
		release := make(chan struct{})
		var published atomic.Bool
		failing := experiment.PublisherFunc[int, int](func(ctx context.Context, result *experiment.Result[int, int]) error {
			<-release
			published.Store(true)
			if err := sink.Publish(ctx, result); err != nil {
				return err
			}
			return errBoom
		})

		var handled atomic.Int32
		p := NewFireAndForget[int, int](failing,
			WithErrorHandler(func(_ context.Context, name string, err error) {
				if name == "ff" && err == errBoom {
					handled.Add(1)
				}
			}),
		)

		value, err := experiment.Science(context.Background(), "ff", experiment.Settings[int, int]{
			Control:     experiment.NamedBehavior[int]{Run: returns(3)},
			Candidates:  []experiment.NamedBehavior[int]{experiment.Candidate("candidate", returns(4))},
			Concurrency: 2,
			Publisher:   p,
		})
		require.NoError(t, err)
		require.Equal(t, 3, value)
		require.False(t, published.Load())
		require.Equal(t, 1, p.InFlight())

		close(release)
		require.NoError(t, p.WhenAllPublished(context.Background()))
		require.True(t, published.Load())
		require.Zero(t, p.InFlight())
		require.Equal(t, int32(1), handled.Load())
		require.Len(t, sink.Mismatched(), 1)
	})
}

func TestErrorPolicyString(t *testing.T) {
	require.Equal(t, "ignore", Ignore.String())
	require.Equal(t, "rethrow", Rethrow.String())
	require.Equal(t, "unknown", ErrorPolicy(9).String())
}
