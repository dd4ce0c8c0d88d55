package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/openfga/scientist/pkg/experiment"
	"github.com/openfga/scientist/pkg/logger"
)

type loggingConfig struct {
	values bool
}

type LoggingOpt func(*loggingConfig)

// WithValues adds the cleaned control and candidate values to mismatch logs.
func WithValues(enabled bool) LoggingOpt {
	return func(c *loggingConfig) {
		c.values = enabled
	}
}

// Logging writes every result to a logger: mismatches at info level,
// everything else at debug level.
type Logging[T, C any] struct {
	logger logger.Logger
	cfg    loggingConfig
}

var _ experiment.Publisher[int, int] = (*Logging[int, int])(nil)

func NewLogging[T, C any](l logger.Logger, opts ...LoggingOpt) *Logging[T, C] {
	p := &Logging[T, C]{logger: l}
	for _, opt := range opts {
		opt(&p.cfg)
	}
	return p
}

func (p *Logging[T, C]) Publish(ctx context.Context, result *experiment.Result[T, C]) error {
	control := result.Control()
	fields := []zap.Field{
		zap.String("experiment", result.ExperimentName()),
		zap.String("result_id", result.ID().String()),
		zap.Duration("control_duration", control.Duration()),
		zap.Strings("ignored", observationNames(result.Ignored())),
		zap.Strings("cancelled", observationNames(result.Cancelled())),
	}

	if !result.IsMismatched() {
		p.logger.DebugWithContext(ctx, "experiment matched", fields...)
		return nil
	}

	fields = append(fields, zap.Strings("mismatched", observationNames(result.Mismatched())))
	if control.Thrown() {
		fields = append(fields, zap.NamedError("control_error", control.Err()))
	}
	if p.cfg.values {
		fields = append(fields, zap.Any("control_value", result.Cleaned(control)))
		candidates := make(map[string]any, len(result.Mismatched()))
		for _, o := range result.Mismatched() {
			if o.Thrown() {
				candidates[o.Name()] = o.Err().Error()
				continue
			}
			candidates[o.Name()] = result.Cleaned(o)
		}
		fields = append(fields, zap.Any("candidate_values", candidates))
	}

	p.logger.InfoWithContext(ctx, "experiment mismatch", fields...)
	return nil
}

func observationNames[T any](observations []*experiment.Observation[T]) []string {
	names := make([]string, 0, len(observations))
	for _, o := range observations {
		names = append(names, o.Name())
	}
	return names
}
