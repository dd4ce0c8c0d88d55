package run

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openfga/scientist/cmd/util"
	"github.com/openfga/scientist/internal/config"
)

// registerRunFlags declares the flags shared by every command that reads the
// experiment configuration.
func registerRunFlags(flags *pflag.FlagSet) {
	defaultConfig := config.DefaultConfig()

	flags.String("experiment-name", defaultConfig.Experiment.Name, "the name the experiment is published under")
	flags.Int("experiment-iterations", defaultConfig.Experiment.Iterations, "the number of times the experiment runs")
	flags.Int("experiment-concurrency", defaultConfig.Experiment.Concurrency, "the number of behaviors that may run at the same time within one run")
	flags.String("experiment-order", defaultConfig.Experiment.Order, "the order behaviors are started in. One of 'random', 'control-first' or 'control-last'")
	flags.Duration("experiment-interval", defaultConfig.Experiment.Interval, "the pause between two iterations")
	flags.Int64("experiment-seed", defaultConfig.Experiment.Seed, "the seed of the random orderer and sampler. Zero picks a time based seed")
	flags.Bool("experiment-throw-on-mismatch", defaultConfig.Experiment.ThrowOnMismatch, "return a mismatch error from a run once its result has been published")
	flags.Float64("experiment-sample-percent", defaultConfig.Experiment.SamplePercent, "the percentage of runs in which candidates run")
	flags.StringSlice("experiment-flags", defaultConfig.Experiment.Flags, "the feature flags turned on, e.g. 'experiment.arithmetic'. When empty, flags do not gate the experiment")
	flags.String("experiment-flag-prefix", defaultConfig.Experiment.FlagPrefix, "the prefix of the feature flag that enables an experiment")
	flags.StringArray("experiment-ignore", defaultConfig.Experiment.Ignore, "a CEL expression over 'control' and 'candidate' that ignores a mismatch. May be repeated")
	flags.String("experiment-run-if", defaultConfig.Experiment.RunIf, "a CEL expression over 'context' that must hold for candidates to run")
	flags.StringToString("experiment-contexts", defaultConfig.Experiment.Contexts, "metadata attached to every result, as key=value pairs")
	flags.String("experiment-failure-policy", defaultConfig.Experiment.FailurePolicy, "what happens to internal experiment failures. One of 'log' or 'surface'")
	flags.Bool("experiment-enabler-cache-enabled", defaultConfig.Experiment.EnablerCache.Enabled, "cache enablement decisions")
	flags.Int64("experiment-enabler-cache-limit", defaultConfig.Experiment.EnablerCache.Limit, "the maximum number of cached enablement decisions")
	flags.Duration("experiment-enabler-cache-ttl", defaultConfig.Experiment.EnablerCache.TTL, "how long an enablement decision is cached")
	flags.Bool("publish-async", defaultConfig.Publish.Async, "publish results in the background")
	flags.String("publish-error-policy", defaultConfig.Publish.ErrorPolicy, "what happens to background publish errors. One of 'ignore' or 'rethrow'")
	flags.Duration("publish-timeout", defaultConfig.Publish.Timeout, "the timeout of one background publish. Zero disables it")
	flags.Duration("publish-drain-timeout", defaultConfig.Publish.DrainTimeout, "how long to wait for background publishes before exiting")
	flags.Bool("publish-log-values", defaultConfig.Publish.LogValues, "include control and candidate values in mismatch logs")
	flags.Bool("publish-retry-enabled", defaultConfig.Publish.Retry.Enabled, "retry failed publishes with exponential backoff")
	flags.Uint64("publish-retry-max-retries", defaultConfig.Publish.Retry.MaxRetries, "the maximum number of publish retries")
	flags.Duration("publish-retry-initial-interval", defaultConfig.Publish.Retry.InitialInterval, "the first pause between two publish attempts")
	flags.Duration("publish-retry-max-elapsed-time", defaultConfig.Publish.Retry.MaxElapsedTime, "the maximum time spent retrying one publish")
	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")
	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces")
	flags.Int("trace-tail-latency-in-ms", defaultConfig.Trace.TailLatencyInMs, "only export traces slower than this many milliseconds or containing a mismatch. Zero exports every sampled trace")
	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")

	// NOTE: if you add a new flag here, update the function below, too
}

// bindRunFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		util.MustBindPFlag("experiment.name", flags.Lookup("experiment-name"))
		util.MustBindEnv("experiment.name", "SCIENTIST_EXPERIMENT_NAME")

		util.MustBindPFlag("experiment.iterations", flags.Lookup("experiment-iterations"))
		util.MustBindEnv("experiment.iterations", "SCIENTIST_EXPERIMENT_ITERATIONS")

		util.MustBindPFlag("experiment.concurrency", flags.Lookup("experiment-concurrency"))
		util.MustBindEnv("experiment.concurrency", "SCIENTIST_EXPERIMENT_CONCURRENCY")

		util.MustBindPFlag("experiment.order", flags.Lookup("experiment-order"))
		util.MustBindEnv("experiment.order", "SCIENTIST_EXPERIMENT_ORDER")

		util.MustBindPFlag("experiment.interval", flags.Lookup("experiment-interval"))
		util.MustBindEnv("experiment.interval", "SCIENTIST_EXPERIMENT_INTERVAL")

		util.MustBindPFlag("experiment.seed", flags.Lookup("experiment-seed"))
		util.MustBindEnv("experiment.seed", "SCIENTIST_EXPERIMENT_SEED")

		util.MustBindPFlag("experiment.throwOnMismatch", flags.Lookup("experiment-throw-on-mismatch"))
		util.MustBindEnv("experiment.throwOnMismatch", "SCIENTIST_EXPERIMENT_THROW_ON_MISMATCH", "SCIENTIST_EXPERIMENT_THROWONMISMATCH")

		util.MustBindPFlag("experiment.samplePercent", flags.Lookup("experiment-sample-percent"))
		util.MustBindEnv("experiment.samplePercent", "SCIENTIST_EXPERIMENT_SAMPLE_PERCENT", "SCIENTIST_EXPERIMENT_SAMPLEPERCENT")

		util.MustBindPFlag("experiment.flags", flags.Lookup("experiment-flags"))
		util.MustBindEnv("experiment.flags", "SCIENTIST_EXPERIMENT_FLAGS")

		util.MustBindPFlag("experiment.flagPrefix", flags.Lookup("experiment-flag-prefix"))
		util.MustBindEnv("experiment.flagPrefix", "SCIENTIST_EXPERIMENT_FLAG_PREFIX", "SCIENTIST_EXPERIMENT_FLAGPREFIX")

		util.MustBindPFlag("experiment.ignore", flags.Lookup("experiment-ignore"))
		util.MustBindEnv("experiment.ignore", "SCIENTIST_EXPERIMENT_IGNORE")

		util.MustBindPFlag("experiment.runIf", flags.Lookup("experiment-run-if"))
		util.MustBindEnv("experiment.runIf", "SCIENTIST_EXPERIMENT_RUN_IF", "SCIENTIST_EXPERIMENT_RUNIF")

		util.MustBindPFlag("experiment.contexts", flags.Lookup("experiment-contexts"))
		util.MustBindEnv("experiment.contexts", "SCIENTIST_EXPERIMENT_CONTEXTS")

		util.MustBindPFlag("experiment.failurePolicy", flags.Lookup("experiment-failure-policy"))
		util.MustBindEnv("experiment.failurePolicy", "SCIENTIST_EXPERIMENT_FAILURE_POLICY", "SCIENTIST_EXPERIMENT_FAILUREPOLICY")

		util.MustBindPFlag("experiment.enablerCache.enabled", flags.Lookup("experiment-enabler-cache-enabled"))
		util.MustBindEnv("experiment.enablerCache.enabled", "SCIENTIST_EXPERIMENT_ENABLER_CACHE_ENABLED", "SCIENTIST_EXPERIMENT_ENABLERCACHE_ENABLED")

		util.MustBindPFlag("experiment.enablerCache.limit", flags.Lookup("experiment-enabler-cache-limit"))
		util.MustBindEnv("experiment.enablerCache.limit", "SCIENTIST_EXPERIMENT_ENABLER_CACHE_LIMIT", "SCIENTIST_EXPERIMENT_ENABLERCACHE_LIMIT")

		util.MustBindPFlag("experiment.enablerCache.ttl", flags.Lookup("experiment-enabler-cache-ttl"))
		util.MustBindEnv("experiment.enablerCache.ttl", "SCIENTIST_EXPERIMENT_ENABLER_CACHE_TTL", "SCIENTIST_EXPERIMENT_ENABLERCACHE_TTL")

		util.MustBindPFlag("publish.async", flags.Lookup("publish-async"))
		util.MustBindEnv("publish.async", "SCIENTIST_PUBLISH_ASYNC")

		util.MustBindPFlag("publish.errorPolicy", flags.Lookup("publish-error-policy"))
		util.MustBindEnv("publish.errorPolicy", "SCIENTIST_PUBLISH_ERROR_POLICY", "SCIENTIST_PUBLISH_ERRORPOLICY")

		util.MustBindPFlag("publish.timeout", flags.Lookup("publish-timeout"))
		util.MustBindEnv("publish.timeout", "SCIENTIST_PUBLISH_TIMEOUT")

		util.MustBindPFlag("publish.drainTimeout", flags.Lookup("publish-drain-timeout"))
		util.MustBindEnv("publish.drainTimeout", "SCIENTIST_PUBLISH_DRAIN_TIMEOUT", "SCIENTIST_PUBLISH_DRAINTIMEOUT")

		util.MustBindPFlag("publish.logValues", flags.Lookup("publish-log-values"))
		util.MustBindEnv("publish.logValues", "SCIENTIST_PUBLISH_LOG_VALUES", "SCIENTIST_PUBLISH_LOGVALUES")

		util.MustBindPFlag("publish.retry.enabled", flags.Lookup("publish-retry-enabled"))
		util.MustBindEnv("publish.retry.enabled", "SCIENTIST_PUBLISH_RETRY_ENABLED")

		util.MustBindPFlag("publish.retry.maxRetries", flags.Lookup("publish-retry-max-retries"))
		util.MustBindEnv("publish.retry.maxRetries", "SCIENTIST_PUBLISH_RETRY_MAX_RETRIES", "SCIENTIST_PUBLISH_RETRY_MAXRETRIES")

		util.MustBindPFlag("publish.retry.initialInterval", flags.Lookup("publish-retry-initial-interval"))
		util.MustBindEnv("publish.retry.initialInterval", "SCIENTIST_PUBLISH_RETRY_INITIAL_INTERVAL", "SCIENTIST_PUBLISH_RETRY_INITIALINTERVAL")

		util.MustBindPFlag("publish.retry.maxElapsedTime", flags.Lookup("publish-retry-max-elapsed-time"))
		util.MustBindEnv("publish.retry.maxElapsedTime", "SCIENTIST_PUBLISH_RETRY_MAX_ELAPSED_TIME", "SCIENTIST_PUBLISH_RETRY_MAXELAPSEDTIME")

		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "SCIENTIST_LOG_FORMAT")

		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "SCIENTIST_LOG_LEVEL")

		util.MustBindPFlag("log.timestampFormat", flags.Lookup("log-timestamp-format"))
		util.MustBindEnv("log.timestampFormat", "SCIENTIST_LOG_TIMESTAMP_FORMAT", "SCIENTIST_LOG_TIMESTAMPFORMAT")

		util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
		util.MustBindEnv("trace.enabled", "SCIENTIST_TRACE_ENABLED")

		util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
		util.MustBindEnv("trace.otlp.endpoint", "SCIENTIST_TRACE_OTLP_ENDPOINT")

		util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
		util.MustBindEnv("trace.sampleRatio", "SCIENTIST_TRACE_SAMPLE_RATIO", "SCIENTIST_TRACE_SAMPLERATIO")

		util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
		util.MustBindEnv("trace.serviceName", "SCIENTIST_TRACE_SERVICE_NAME", "SCIENTIST_TRACE_SERVICENAME")

		util.MustBindPFlag("trace.tailLatencyInMs", flags.Lookup("trace-tail-latency-in-ms"))
		util.MustBindEnv("trace.tailLatencyInMs", "SCIENTIST_TRACE_TAIL_LATENCY_IN_MS", "SCIENTIST_TRACE_TAILLATENCYINMS")

		util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
		util.MustBindEnv("metrics.enabled", "SCIENTIST_METRICS_ENABLED")

		util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
		util.MustBindEnv("metrics.addr", "SCIENTIST_METRICS_ADDR")
	}
}
