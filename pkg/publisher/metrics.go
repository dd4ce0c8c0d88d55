package publisher

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openfga/scientist/internal/build"
	"github.com/openfga/scientist/pkg/experiment"
)

const (
	outcomeMatched    = "matched"
	outcomeMismatched = "mismatched"
	outcomeIgnored    = "ignored"
	outcomeCancelled  = "cancelled"
)

// Collectors are the Prometheus collectors shared by every Metrics publisher
// that reports to the same registry. Create them once per registry.
type Collectors struct {
	results    *prometheus.CounterVec
	candidates *prometheus.CounterVec
	durationMs *prometheus.HistogramVec
}

// NewCollectors registers the experiment collectors with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: build.ProjectName,
			Name:      "experiment_results_total",
			Help:      "The total number of published experiment results, by outcome.",
		}, []string{"experiment", "outcome"}),

		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: build.ProjectName,
			Name:      "experiment_candidates_total",
			Help:      "The total number of candidate observations, by outcome.",
		}, []string{"experiment", "candidate", "outcome"}),

		durationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       build.ProjectName,
			Name:                            "experiment_behavior_duration_ms",
			Help:                            "The duration (in ms) of each behavior of an experiment.",
			Buckets:                         []float64{1, 5, 10, 25, 50, 100, 200, 300, 1000, 5000},
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}, []string{"experiment", "behavior"}),
	}
}

// Metrics records every result in a set of Collectors.
type Metrics[T, C any] struct {
	collectors *Collectors
}

var _ experiment.Publisher[int, int] = (*Metrics[int, int])(nil)

func NewMetrics[T, C any](collectors *Collectors) *Metrics[T, C] {
	return &Metrics[T, C]{collectors: collectors}
}

func (m *Metrics[T, C]) Publish(_ context.Context, result *experiment.Result[T, C]) error {
	name := result.ExperimentName()

	outcome := outcomeMatched
	if result.IsMismatched() {
		outcome = outcomeMismatched
	}
	m.collectors.results.WithLabelValues(name, outcome).Inc()

	control := result.Control()
	m.observe(name, control)

	outcomes := make(map[string]string, len(result.Candidates()))
	for _, o := range result.Mismatched() {
		outcomes[o.Name()] = outcomeMismatched
	}
	for _, o := range result.Ignored() {
		outcomes[o.Name()] = outcomeIgnored
	}
	for _, o := range result.Cancelled() {
		outcomes[o.Name()] = outcomeCancelled
	}

	for _, o := range result.Candidates() {
		outcome, ok := outcomes[o.Name()]
		if !ok {
			outcome = outcomeMatched
		}
		m.collectors.candidates.WithLabelValues(name, o.Name(), outcome).Inc()
		if !o.Cancelled() {
			m.observe(name, o)
		}
	}

	return nil
}

func (m *Metrics[T, C]) observe(name string, o *experiment.Observation[T]) {
	m.collectors.durationMs.WithLabelValues(name, o.Name()).Observe(float64(o.Duration().Milliseconds()))
}
