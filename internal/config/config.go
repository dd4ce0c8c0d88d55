// Package config contains all knobs and defaults used to configure the
// scientist command line.
package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/openfga/scientist/internal/build"
)

const (
	DefaultExperimentName        = "arithmetic"
	DefaultIterations            = 100
	DefaultConcurrency           = 2
	DefaultOrder                 = OrderRandom
	DefaultSamplePercent         = 100
	DefaultFlagPrefix            = "experiment."
	DefaultEnablerCacheEnabled   = false
	DefaultEnablerCacheLimit     = 10000
	DefaultEnablerCacheTTL       = 10 * time.Second
	DefaultPublishAsync          = true
	DefaultPublishErrorPolicy    = "ignore"
	DefaultPublishTimeout        = 5 * time.Second
	DefaultPublishDrainTimeout   = 10 * time.Second
	DefaultRetryEnabled          = false
	DefaultRetryMaxRetries       = 3
	DefaultRetryInitialInterval  = 50 * time.Millisecond
	DefaultRetryMaxElapsedTime   = 5 * time.Second
	DefaultTraceTailLatencyInMs  = 1000
	DefaultMetricsAddr           = "0.0.0.0:2112"
	DefaultFailureReporterPolicy = "log"
)

const (
	OrderRandom       = "random"
	OrderControlFirst = "control-first"
	OrderControlLast  = "control-last"
)

// ExperimentConfig defines how the experiment run by the command behaves.
type ExperimentConfig struct {
	Name string `json:"name"`

	// Iterations is the number of times the experiment runs.
	Iterations int `json:"iterations"`

	// Concurrency is the number of behaviors that may run at the same time
	// within one iteration.
	Concurrency int `json:"concurrency"`

	// Order is one of 'random', 'control-first' or 'control-last'.
	Order string `json:"order"`

	// Interval is the pause between two iterations.
	Interval time.Duration `json:"interval"`

	// Seed seeds the random orderer and sampler. Zero picks a time based seed.
	Seed int64 `json:"seed"`

	ThrowOnMismatch bool `json:"throwOnMismatch"`

	// SamplePercent is the percentage of iterations in which candidates run.
	SamplePercent float64 `json:"samplePercent"`

	// Flags lists the feature flags that are on. When empty, no flag check is made.
	Flags      []string `json:"flags"`
	FlagPrefix string `json:"flagPrefix"`

	// Ignore lists CEL expressions over 'control' and 'candidate'. A mismatch
	// matching any of them is ignored.
	Ignore []string `json:"ignore"`

	// RunIf is a CEL expression over 'context' deciding whether candidates run.
	RunIf string `json:"runIf"`

	// Contexts are attached to every result and exposed to RunIf.
	Contexts map[string]string `json:"contexts"`

	// FailurePolicy is 'log' to log internal failures, or 'surface' to return them.
	FailurePolicy string `json:"failurePolicy"`

	EnablerCache EnablerCacheConfig `json:"enablerCache"`
}

// EnablerCacheConfig defines caching of enablement decisions.
type EnablerCacheConfig struct {
	Enabled bool `json:"enabled"`
	Limit   int64 `json:"limit"`
	TTL     time.Duration `json:"ttl"`
}

type PublishConfig struct {
	// Async publishes results in the background.
	Async bool `json:"async"`

	// ErrorPolicy is 'ignore' or 'rethrow' and applies to background publishes.
	ErrorPolicy string `json:"errorPolicy"`

	// Timeout bounds each background publish.
	Timeout time.Duration `json:"timeout"`

	// DrainTimeout bounds the wait for background publishes before exiting.
	DrainTimeout time.Duration `json:"drainTimeout"`

	// LogValues adds the cleaned values to mismatch logs.
	LogValues bool `json:"logValues"`

	Retry RetryConfig `json:"retry"`
}

type RetryConfig struct {
	Enabled         bool `json:"enabled"`
	MaxRetries      uint64 `json:"maxRetries"`
	InitialInterval time.Duration `json:"initialInterval"`
	MaxElapsedTime  time.Duration `json:"maxElapsedTime"`
}

// LogConfig defines log specific settings. For production we recommend
// using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string `json:"format"`

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string `json:"level"`

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string `json:"timestampFormat"`
}

type TraceConfig struct {
	Enabled     bool `json:"enabled"`
	OTLP        OTLPTraceConfig `json:"otlp" mapstructure:"otlp"`
	SampleRatio float64 `json:"sampleRatio"`
	ServiceName string `json:"serviceName"`

	// TailLatencyInMs, when positive, only exports traces slower than this
	// or containing a mismatch.
	TailLatencyInMs int `json:"tailLatencyInMs"`
}

type OTLPTraceConfig struct {
	Endpoint string `json:"endpoint"`
}

// MetricConfig defines configurations for serving Prometheus metrics.
type MetricConfig struct {
	Enabled bool `json:"enabled"`
	Addr    string `json:"addr"`
}

type Config struct {
	Experiment ExperimentConfig `json:"experiment"`
	Publish    PublishConfig `json:"publish"`
	Log        LogConfig `json:"log"`
	Trace      TraceConfig `json:"trace"`
	Metrics    MetricConfig `json:"metrics"`
}

func (cfg *Config) Verify() error {
	if cfg.Experiment.Name == "" {
		return errors.New("config 'experiment.name' must not be empty")
	}

	if cfg.Experiment.Iterations < 1 {
		return fmt.Errorf("config 'experiment.iterations' must be at least 1, got %d", cfg.Experiment.Iterations)
	}

	if cfg.Experiment.Concurrency < 1 {
		return fmt.Errorf("config 'experiment.concurrency' must be at least 1, got %d", cfg.Experiment.Concurrency)
	}

	switch cfg.Experiment.Order {
	case OrderRandom, OrderControlFirst, OrderControlLast:
	default:
		return fmt.Errorf("config 'experiment.order' must be one of ['%s', '%s', '%s']", OrderRandom, OrderControlFirst, OrderControlLast)
	}

	if cfg.Experiment.Interval < 0 {
		return errors.New("config 'experiment.interval' must be a non-negative time duration")
	}

	if cfg.Experiment.SamplePercent < 0 || cfg.Experiment.SamplePercent > 100 {
		return errors.New("config 'experiment.samplePercent' must be between 0 and 100")
	}

	if cfg.Experiment.FailurePolicy != "log" && cfg.Experiment.FailurePolicy != "surface" {
		return errors.New("config 'experiment.failurePolicy' must be one of ['log', 'surface']")
	}

	if cfg.Experiment.EnablerCache.Enabled {
		if cfg.Experiment.EnablerCache.Limit <= 0 {
			return errors.New("enabler cache limit must be a positive integer")
		}
		if cfg.Experiment.EnablerCache.TTL <= 0 {
			return errors.New("enabler cache ttl must be a positive time duration")
		}
	}

	if cfg.Publish.ErrorPolicy != "ignore" && cfg.Publish.ErrorPolicy != "rethrow" {
		return errors.New("config 'publish.errorPolicy' must be one of ['ignore', 'rethrow']")
	}

	if cfg.Publish.Timeout < 0 || cfg.Publish.DrainTimeout < 0 {
		return errors.New("publish timeouts must be non-negative time durations")
	}

	if cfg.Publish.Retry.Enabled && cfg.Publish.Retry.InitialInterval <= 0 {
		return errors.New("config 'publish.retry.initialInterval' must be a positive time duration")
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	if cfg.Trace.Enabled && (cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1) {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("config 'metrics.addr' must be set when metrics are enabled")
	}

	return nil
}

// DefaultConfig is the default configuration of the scientist command.
func DefaultConfig() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			Name:          DefaultExperimentName,
			Iterations:    DefaultIterations,
			Concurrency:   DefaultConcurrency,
			Order:         DefaultOrder,
			SamplePercent: DefaultSamplePercent,
			Flags:         []string{},
			FlagPrefix:    DefaultFlagPrefix,
			Ignore:        []string{},
			Contexts:      map[string]string{},
			FailurePolicy: DefaultFailureReporterPolicy,
			EnablerCache: EnablerCacheConfig{
				Enabled: DefaultEnablerCacheEnabled,
				Limit:   DefaultEnablerCacheLimit,
				TTL:     DefaultEnablerCacheTTL,
			},
		},
		Publish: PublishConfig{
			Async:        DefaultPublishAsync,
			ErrorPolicy:  DefaultPublishErrorPolicy,
			Timeout:      DefaultPublishTimeout,
			DrainTimeout: DefaultPublishDrainTimeout,
			Retry: RetryConfig{
				Enabled:         DefaultRetryEnabled,
				MaxRetries:      DefaultRetryMaxRetries,
				InitialInterval: DefaultRetryInitialInterval,
				MaxElapsedTime:  DefaultRetryMaxElapsedTime,
			},
		},
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio:     0.2,
			ServiceName:     build.ProjectName,
			TailLatencyInMs: 0,
		},
		Metrics: MetricConfig{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
	}
}

// MustDefaultConfig returns the default config with metrics turned off.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	config.Metrics.Enabled = false

	return config
}

// MustDefaultConfigWithRandomPorts returns the default config with metrics
// served on a random port.
// This function may panic if somehow a random port cannot be chosen.
func MustDefaultConfigWithRandomPorts() *Config {
	config := DefaultConfig()

	metricsPort, metricsPortReleaser := TCPRandomPort()
	defer metricsPortReleaser()

	config.Metrics.Addr = fmt.Sprintf("localhost:%d", metricsPort)

	return config
}

// TCPRandomPort tries to find a random TCP Port. If it can't find one, it panics. Else, it returns the port and a function that releases the port.
// It is the responsibility of the caller to call the release function right before trying to listen on the given port.
func TCPRandomPort() (int, func()) {
	l, err := net.Listen("tcp", "")
	if err != nil {
		panic(err)
	}
	return l.Addr().(*net.TCPAddr).Port, func() {
		l.Close()
	}
}
