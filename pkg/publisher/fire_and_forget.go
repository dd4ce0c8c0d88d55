package publisher

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/openfga/scientist/pkg/experiment"
	"github.com/openfga/scientist/pkg/logger"
)

// ErrorPolicy decides what happens to an error returned by a background publish.
type ErrorPolicy int

const (
	// Ignore logs the error and drops it.
	Ignore ErrorPolicy = iota
	// Rethrow keeps the error until the next call to WhenAllPublished.
	Rethrow
)

func (p ErrorPolicy) String() string {
	switch p {
	case Ignore:
		return "ignore"
	case Rethrow:
		return "rethrow"
	default:
		return "unknown"
	}
}

// ErrorHandler observes every failed background publish, whatever the policy.
type ErrorHandler func(ctx context.Context, experiment string, err error)

type fireAndForgetConfig struct {
	policy  ErrorPolicy
	onError ErrorHandler
	timeout time.Duration
	logger  logger.Logger
}

type FireAndForgetOpt func(*fireAndForgetConfig)

func WithErrorPolicy(policy ErrorPolicy) FireAndForgetOpt {
	return func(c *fireAndForgetConfig) {
		c.policy = policy
	}
}

func WithErrorHandler(handler ErrorHandler) FireAndForgetOpt {
	return func(c *fireAndForgetConfig) {
		c.onError = handler
	}
}

// WithPublishTimeout bounds every background publish. Zero means no bound.
func WithPublishTimeout(timeout time.Duration) FireAndForgetOpt {
	return func(c *fireAndForgetConfig) {
		c.timeout = timeout
	}
}

func WithFireAndForgetLogger(l logger.Logger) FireAndForgetOpt {
	return func(c *fireAndForgetConfig) {
		c.logger = l
	}
}

// FireAndForget hands every result to its delegate on a new goroutine and
// returns straight away, so a slow sink never delays the caller of
// experiment.Run. The background publish is detached from the caller's
// cancellation but keeps its values.
//
// In-flight publishes are tracked until they complete. Call WhenAllPublished
// before shutting down to drain them.
type FireAndForget[T, C any] struct {
	delegate experiment.Publisher[T, C]
	cfg      fireAndForgetConfig

	mu       sync.Mutex
	inFlight map[ulid.ULID]chan struct{}
	errs     []error
}

var _ experiment.Publisher[int, int] = (*FireAndForget[int, int])(nil)

func NewFireAndForget[T, C any](delegate experiment.Publisher[T, C], opts ...FireAndForgetOpt) *FireAndForget[T, C] {
	f := &FireAndForget[T, C]{
		delegate: delegate,
		cfg: fireAndForgetConfig{
			policy: Ignore,
			logger: logger.NewNoopLogger(),
		},
		inFlight: make(map[ulid.ULID]chan struct{}),
	}
	for _, opt := range opts {
		opt(&f.cfg)
	}
	return f
}

// Publish starts the delegate in the background and always returns nil.
func (f *FireAndForget[T, C]) Publish(ctx context.Context, result *experiment.Result[T, C]) error {
	id := ulid.Make()
	done := make(chan struct{})

	f.mu.Lock()
	f.inFlight[id] = done
	f.mu.Unlock()

	go func(ctx context.Context) {
		defer func() {
			f.mu.Lock()
			delete(f.inFlight, id)
			f.mu.Unlock()
			close(done)
		}()

		if f.cfg.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.cfg.timeout)
			defer cancel()
		}

		err := safePublish(ctx, f.delegate, result)
		if err == nil {
			return
		}
		f.failed(ctx, id, result.ExperimentName(), err)
	}(context.WithoutCancel(ctx))

	return nil
}

func (f *FireAndForget[T, C]) failed(ctx context.Context, id ulid.ULID, name string, err error) {
	errs := []error{err}
	if handlerErr := f.handle(ctx, name, err); handlerErr != nil {
		errs = append(errs, handlerErr)
	}

	switch f.cfg.policy {
	case Rethrow:
		f.mu.Lock()
		f.errs = append(f.errs, errs...)
		f.mu.Unlock()
	default:
		for _, e := range errs {
			f.cfg.logger.WarnWithContext(ctx, "background experiment publish failed",
				zap.String("experiment", name),
				zap.String("task_id", id.String()),
				zap.Error(e),
			)
		}
	}
}

// handle runs the ErrorHandler. A panic in it is returned as an *experiment.PanicError.
func (f *FireAndForget[T, C]) handle(ctx context.Context, name string, err error) (handlerErr error) {
	if f.cfg.onError == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			handlerErr = &experiment.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	f.cfg.onError(ctx, name, err)
	return nil
}

// InFlight returns the number of publishes that have not completed yet.
func (f *FireAndForget[T, C]) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// WhenAllPublished waits for the publishes in flight when it was called.
// It returns ctx's error if ctx ends first. Otherwise, under the Rethrow
// policy, it returns the errors collected since the previous call and forgets
// them.
func (f *FireAndForget[T, C]) WhenAllPublished(ctx context.Context) error {
	f.mu.Lock()
	pending := make([]chan struct{}, 0, len(f.inFlight))
	for _, done := range f.inFlight {
		pending = append(pending, done)
	}
	f.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	errs := f.errs
	f.errs = nil
	f.mu.Unlock()

	return errors.Join(errs...)
}
