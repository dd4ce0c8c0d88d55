// Package run contains the command that runs the built-in arithmetic experiment.
package run

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/openfga/scientist/internal/config"
	"github.com/openfga/scientist/pkg/condition"
	"github.com/openfga/scientist/pkg/experiment"
	"github.com/openfga/scientist/pkg/featureflags"
	"github.com/openfga/scientist/pkg/logger"
	"github.com/openfga/scientist/pkg/publisher"
	"github.com/openfga/scientist/pkg/telemetry"
)

const tracerName = "github.com/openfga/scientist/cmd/run"

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built-in arithmetic experiment",
		Long: `Run the built-in arithmetic experiment.

The control sums 1..n in a loop. The 'formula' candidate uses the closed form and always
matches, the 'off-by-one' candidate stops one step short and mismatches for every input.`,
		RunE: run,
		Args: cobra.NoArgs,
	}

	flags := cmd.Flags()
	registerRunFlags(flags)

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

// ReadConfig returns the scientist configuration based on the values provided in the 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/scientist', '$HOME/.scientist', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	runCtx := &RunContext{
		Logger: logger.MustNewLogger(
			logger.WithFormat(cfg.Log.Format),
			logger.WithLevel(cfg.Log.Level),
			logger.WithTimestampFormat(cfg.Log.TimestampFormat),
		),
	}

	_, err = runCtx.Run(cmd.Context(), cfg)
	return err
}

// RunContext holds what the arithmetic experiment needs beyond its config.
type RunContext struct {
	Logger logger.Logger
}

// Summary counts what happened over all iterations. Counts come from the
// results that reached the publishers.
type Summary struct {
	Iterations int
	Published  int
	Matched    int
	Mismatched int
	Ignored    int
	Cancelled  int

	// Raised counts runs that returned a mismatch error.
	Raised int

	// Failures counts runs that returned internal experiment failures.
	Failures int
}

// telemetryConfig returns the function that must be called to shut down tracing.
func (s *RunContext) telemetryConfig(cfg *config.Config) func() error {
	if cfg.Trace.Enabled {
		s.Logger.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s'", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint))

		options := []telemetry.TracerOption{
			telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
			telemetry.WithServiceName(cfg.Trace.ServiceName),
			telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		}

		if cfg.Trace.TailLatencyInMs > 0 {
			options = append(options,
				telemetry.WithEnableTailLatencySpanExporter(true),
				telemetry.WithTailLatencyInMillisecond(cfg.Trace.TailLatencyInMs),
			)
		}

		tp := telemetry.MustNewTracerProvider(options...)
		return func() error {
			// the batch span processor may need up to 5 seconds to flush
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return tp.Close(ctx)
		}
	}

	tp := telemetry.Noop()
	otel.SetTracerProvider(tp)
	return func() error {
		return tp.Close(context.Background())
	}
}

// enablerConfig builds the gate of the experiment from its feature flags,
// sampling percentage and cache settings. A nil enabler always enables.
func (s *RunContext) enablerConfig(cfg *config.Config, shuffler *experiment.Shuffler) (experiment.Enabler, func(), error) {
	var enablers []experiment.Enabler

	if len(cfg.Experiment.Flags) > 0 {
		s.Logger.Info(fmt.Sprintf("🚩 experiment gated by feature flags: %v", cfg.Experiment.Flags))
		enablers = append(enablers, featureflags.NewFlagEnabler(
			featureflags.NewDefaultClient(cfg.Experiment.Flags),
			featureflags.WithFlagPrefix(cfg.Experiment.FlagPrefix),
		))
	}

	if cfg.Experiment.SamplePercent < 100 {
		percent, err := featureflags.NewPercentEnablerWithShuffler(cfg.Experiment.SamplePercent, shuffler)
		if err != nil {
			return nil, nil, err
		}
		enablers = append(enablers, percent)
	}

	if len(enablers) == 0 {
		return nil, func() {}, nil
	}

	enabler := featureflags.All(enablers...)
	if !cfg.Experiment.EnablerCache.Enabled {
		return enabler, func() {}, nil
	}

	cached, err := featureflags.NewCachedEnabler(enabler,
		featureflags.WithCacheSize(cfg.Experiment.EnablerCache.Limit),
		featureflags.WithCacheTTL(cfg.Experiment.EnablerCache.TTL),
	)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}

// publisherConfig builds the publisher pipeline. The returned drain function
// waits for background publishes.
func (s *RunContext) publisherConfig(cfg *config.Config, registry prometheus.Registerer, sink *publisher.InMemory[int, int]) (experiment.Publisher[int, int], func(context.Context) error) {
	reporters := []experiment.Publisher[int, int]{
		publisher.NewLogging[int, int](s.Logger, publisher.WithValues(cfg.Publish.LogValues)),
	}
	if cfg.Metrics.Enabled {
		reporters = append(reporters, publisher.NewMetrics[int, int](publisher.NewCollectors(registry)))
	}

	var reporter experiment.Publisher[int, int] = publisher.NewMulti(reporters...)
	if cfg.Publish.Retry.Enabled {
		reporter = publisher.NewRetrying[int, int](reporter,
			publisher.WithMaxRetries(cfg.Publish.Retry.MaxRetries),
			publisher.WithInitialInterval(cfg.Publish.Retry.InitialInterval),
			publisher.WithMaxElapsedTime(cfg.Publish.Retry.MaxElapsedTime),
			publisher.WithRetryLogger(s.Logger),
		)
	}

	pipeline := publisher.NewMulti[int, int](sink, reporter)
	if !cfg.Publish.Async {
		return pipeline, func(context.Context) error { return nil }
	}

	policy := publisher.Ignore
	if cfg.Publish.ErrorPolicy == "rethrow" {
		policy = publisher.Rethrow
	}

	background := publisher.NewFireAndForget[int, int](pipeline,
		publisher.WithErrorPolicy(policy),
		publisher.WithPublishTimeout(cfg.Publish.Timeout),
		publisher.WithFireAndForgetLogger(s.Logger),
	)
	return background, background.WhenAllPublished
}

func (s *RunContext) buildExperiment(cfg *config.Config, shuffler *experiment.Shuffler, enabler experiment.Enabler, pub experiment.Publisher[int, int]) (*experiment.Experiment[int, int], error) {
	contexts := experiment.NewContexts()
	for _, key := range slices.Sorted(maps.Keys(cfg.Experiment.Contexts)) {
		if err := contexts.Add(key, cfg.Experiment.Contexts[key]); err != nil {
			return nil, err
		}
	}

	ignore := make([]experiment.IgnorePredicate[int], 0, len(cfg.Experiment.Ignore))
	for _, expr := range cfg.Experiment.Ignore {
		predicate, err := condition.IgnorePredicate[int](expr)
		if err != nil {
			return nil, err
		}
		ignore = append(ignore, predicate)
	}

	var runIf func(context.Context) (bool, error)
	if cfg.Experiment.RunIf != "" {
		var err error
		runIf, err = condition.RunIf(cfg.Experiment.RunIf, contexts)
		if err != nil {
			return nil, err
		}
	}

	var orderer experiment.Orderer[int]
	switch cfg.Experiment.Order {
	case config.OrderControlFirst:
		orderer = experiment.ControlFirst[int]()
	case config.OrderControlLast:
		orderer = experiment.ControlLast[int]()
	default:
		orderer = experiment.RandomWith[int](shuffler)
	}

	onFailure := experiment.LogFailures(s.Logger)
	if cfg.Experiment.FailurePolicy == "surface" {
		onFailure = experiment.DefaultFailureReporter
	}

	control, candidates := arithmeticBehaviors()

	return experiment.New(cfg.Experiment.Name, experiment.Settings[int, int]{
		Control:         control,
		Candidates:      candidates,
		Concurrency:     cfg.Experiment.Concurrency,
		Ignore:          ignore,
		Orderer:         orderer,
		Enabler:         enabler,
		RunIf:           runIf,
		Contexts:        contexts,
		ThrowOnMismatch: cfg.Experiment.ThrowOnMismatch,
		Publisher:       pub,
		OnFailure:       onFailure,
		Logger:          s.Logger,
	})
}

func (s *RunContext) runMetricsServer(cfg *config.Config, registry *prometheus.Registry) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	listener, err := net.Listen("tcp", cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", cfg.Metrics.Addr, err)
	}

	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	go func() {
		s.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", cfg.Metrics.Addr))
		if err := metricsServer.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("prometheus metrics server closed with unexpected error", zap.Error(err))
			}
		}
		s.Logger.Info("metrics server shut down.")
	}()

	return metricsServer, nil
}

// Run runs the arithmetic experiment cfg.Experiment.Iterations times, or until
// ctx is cancelled or the process is interrupted.
func (s *RunContext) Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProviderCloser := s.telemetryConfig(cfg)
	defer func() {
		if err := tracerProviderCloser(); err != nil {
			s.Logger.Error("failed to shutdown tracing", zap.Error(err))
		}
	}()

	seed := cfg.Experiment.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	shuffler := experiment.NewShuffler(seed)
	inputs := experiment.NewShuffler(seed + 1)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	enabler, closeEnabler, err := s.enablerConfig(cfg, shuffler)
	if err != nil {
		return nil, err
	}
	defer closeEnabler()

	sink := publisher.NewInMemory[int, int]()
	pub, drain := s.publisherConfig(cfg, registry, sink)

	exp, err := s.buildExperiment(cfg, shuffler, enabler, pub)
	if err != nil {
		return nil, err
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer, err = s.runMetricsServer(cfg, registry)
		if err != nil {
			return nil, err
		}
	}

	s.Logger.Info(fmt.Sprintf("🧪 running experiment '%s' %d times with concurrency %d", exp.Name(), cfg.Experiment.Iterations, cfg.Experiment.Concurrency))

	summary := &Summary{}
	tracer := otel.Tracer(tracerName)

iterations:
	for i := 0; i < cfg.Experiment.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}

		n := inputs.Intn(maxInput) + 1
		iterCtx, span := tracer.Start(ctx, "arithmetic.iteration")
		span.SetAttributes(attribute.Int("arithmetic.input", n), attribute.Int("arithmetic.iteration", i))

		iterCtx = featureflags.WithSamplingKey(withInput(iterCtx, n), strconv.Itoa(n))
		value, err := exp.Run(iterCtx)
		span.End()

		summary.Iterations++

		switch {
		case err == nil:
			s.Logger.Debug("experiment iteration finished", zap.Int("iteration", i), zap.Int("input", n), zap.Int("value", value))
		case errors.Is(err, experiment.ErrControlCancelled):
			s.Logger.Info("experiment interrupted", zap.Int("iteration", i))
			break iterations
		case errors.Is(err, experiment.ErrMismatch):
			summary.Raised++
			s.Logger.Warn("experiment raised a mismatch", zap.Int("iteration", i), zap.Int("input", n), zap.Error(err))
		default:
			summary.Failures++
			s.Logger.Warn("experiment surfaced failures", zap.Int("iteration", i), zap.Int("input", n), zap.Error(err))
		}

		if cfg.Experiment.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.Experiment.Interval):
			}
		}
	}

	s.waitForPublishes(cfg, drain)

	for _, result := range sink.Results() {
		summary.Published++
		if result.IsMismatched() {
			summary.Mismatched++
		} else {
			summary.Matched++
		}
		summary.Ignored += len(result.Ignored())
		summary.Cancelled += len(result.Cancelled())
	}

	s.Logger.Info("experiment finished",
		zap.String("experiment", exp.Name()),
		zap.Int("iterations", summary.Iterations),
		zap.Int("published", summary.Published),
		zap.Int("matched", summary.Matched),
		zap.Int("mismatched", summary.Mismatched),
		zap.Int("ignored", summary.Ignored),
		zap.Int("cancelled", summary.Cancelled),
		zap.Int("raised", summary.Raised),
		zap.Int("failures", summary.Failures),
	)

	if metricsServer != nil {
		s.Logger.Info("attempting to shutdown gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
		}
	}

	s.Logger.Info("scientist exited. goodbye 👋")

	return summary, nil
}

// waitForPublishes gives background publishes cfg.Publish.DrainTimeout to
// finish. A zero timeout waits without a deadline.
func (s *RunContext) waitForPublishes(cfg *config.Config, drain func(context.Context) error) {
	ctx := context.Background()
	if cfg.Publish.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Publish.DrainTimeout)
		defer cancel()
	}

	err := drain(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		s.Logger.Warn("timed out waiting for background publishes", zap.Duration("drain_timeout", cfg.Publish.DrainTimeout))
	default:
		s.Logger.Warn("background publishes failed", zap.Error(err))
	}
}
