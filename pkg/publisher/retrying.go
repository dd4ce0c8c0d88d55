package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openfga/scientist/pkg/experiment"
	"github.com/openfga/scientist/pkg/logger"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxElapsedTime  = 5 * time.Second
)

type retryConfig struct {
	maxRetries      uint64
	initialInterval time.Duration
	maxElapsedTime  time.Duration
	logger          logger.Logger
}

type RetryingOpt func(*retryConfig)

// WithMaxRetries sets how many times a failed publish is retried. Zero
// disables retries.
func WithMaxRetries(n uint64) RetryingOpt {
	return func(c *retryConfig) {
		c.maxRetries = n
	}
}

func WithInitialInterval(d time.Duration) RetryingOpt {
	return func(c *retryConfig) {
		c.initialInterval = d
	}
}

// WithMaxElapsedTime bounds the total time spent retrying a single result.
func WithMaxElapsedTime(d time.Duration) RetryingOpt {
	return func(c *retryConfig) {
		c.maxElapsedTime = d
	}
}

func WithRetryLogger(l logger.Logger) RetryingOpt {
	return func(c *retryConfig) {
		c.logger = l
	}
}

// Retrying retries a failing delegate with exponential backoff. Panics and
// errors wrapped with backoff.Permanent are not retried.
type Retrying[T, C any] struct {
	delegate experiment.Publisher[T, C]
	cfg      retryConfig
}

var _ experiment.Publisher[int, int] = (*Retrying[int, int])(nil)

func NewRetrying[T, C any](delegate experiment.Publisher[T, C], opts ...RetryingOpt) *Retrying[T, C] {
	r := &Retrying[T, C]{
		delegate: delegate,
		cfg: retryConfig{
			maxRetries:      defaultMaxRetries,
			initialInterval: defaultInitialInterval,
			maxElapsedTime:  defaultMaxElapsedTime,
			logger:          logger.NewNoopLogger(),
		},
	}
	for _, opt := range opts {
		opt(&r.cfg)
	}
	return r
}

func (r *Retrying[T, C]) Publish(ctx context.Context, result *experiment.Result[T, C]) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.initialInterval
	policy.MaxElapsedTime = r.cfg.maxElapsedTime

	attempt := 1
	return backoff.RetryNotify(func() error {
		err := safePublish(ctx, r.delegate, result)
		var panicErr *experiment.PanicError
		if errors.As(err, &panicErr) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, r.cfg.maxRetries), ctx), func(err error, next time.Duration) {
		r.cfg.logger.DebugWithContext(ctx, "retrying experiment publish",
			zap.String("experiment", result.ExperimentName()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
		attempt++
	})
}
