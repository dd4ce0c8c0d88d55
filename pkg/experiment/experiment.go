package experiment

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openfga/scientist/internal/concurrency"
	"github.com/openfga/scientist/internal/errors"
	"github.com/openfga/scientist/pkg/logger"
)

const tracerName = "github.com/openfga/scientist/pkg/experiment"

// Experiment compares a control behavior with its candidates every time it
// runs. An Experiment is safe for concurrent use; every call to Run is an
// independent invocation.
type Experiment[T, C any] struct {
	name       string
	control    NamedBehavior[T]
	behaviors  []NamedBehavior[T]
	candidates int

	concurrency     int
	orderer         Orderer[T]
	enabler         Enabler
	runIf           func(ctx context.Context) (bool, error)
	beforeRun       func(ctx context.Context) error
	contexts        *Contexts
	throwOnMismatch bool

	equivalence equivalence[T]
	ignore      []IgnorePredicate[T]
	cleaner     Cleaner[T, C]

	publisher Publisher[T, C]
	onFailure FailureReporter
	logger    logger.Logger
	tracer    trace.Tracer
}

// New validates settings and builds an experiment. Configuration errors are
// returned here and never from Run.
func New[T, C any](name string, settings Settings[T, C]) (*Experiment[T, C], error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("experiment '%s': %w", name, err)
	}

	control := settings.Control
	if control.Name == "" {
		control.Name = ControlName
	}
	control.control = true

	behaviors := make([]NamedBehavior[T], 0, len(settings.Candidates)+1)
	behaviors = append(behaviors, control)
	for _, candidate := range settings.Candidates {
		candidate.control = false
		behaviors = append(behaviors, candidate)
	}

	e := &Experiment[T, C]{
		name:            name,
		control:         control,
		behaviors:       behaviors,
		candidates:      len(settings.Candidates),
		concurrency:     settings.Concurrency,
		orderer:         settings.Orderer,
		enabler:         settings.Enabler,
		runIf:           settings.RunIf,
		beforeRun:       settings.BeforeRun,
		contexts:        settings.Contexts.clone(),
		throwOnMismatch: settings.ThrowOnMismatch,
		equivalence: equivalence[T]{
			compare:  settings.Compare,
			equality: settings.Equality,
		},
		ignore:    slices.Clone(settings.Ignore),
		cleaner:   settings.Cleaner,
		publisher: settings.Publisher,
		onFailure: settings.OnFailure,
		logger:    settings.Logger,
		tracer:    settings.Tracer,
	}

	if e.orderer == nil {
		e.orderer = Random[T]()
	}
	if e.cleaner == nil {
		e.cleaner = castCleaner[T, C]
	}
	if e.publisher == nil {
		e.publisher = NopPublisher[T, C]()
	}
	if e.onFailure == nil {
		e.onFailure = DefaultFailureReporter
	}
	if e.logger == nil {
		e.logger = logger.NewNoopLogger()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	return e, nil
}

// Science builds the experiment and runs it once.
func Science[T, C any](ctx context.Context, name string, settings Settings[T, C]) (T, error) {
	e, err := New(name, settings)
	if err != nil {
		var zero T
		return zero, err
	}
	return e.Run(ctx)
}

func (e *Experiment[T, C]) Name() string {
	return e.name
}

// Run executes the experiment once and returns the control's outcome.
//
// When the gate is closed only the control runs. Otherwise the control and
// the candidates run, the candidates are compared with the control and the
// result is published before Run returns the control's value and error.
//
// If the control is cancelled, Run returns an error matching both
// ErrControlCancelled and the context's error, and nothing is published. With
// ThrowOnMismatch a mismatched result makes Run return a *MismatchError
// together with the control's value. Internal failures surfaced by the
// FailureReporter are joined into the returned error while the control's value
// is still returned.
func (e *Experiment[T, C]) Run(ctx context.Context) (T, error) {
	ctx, span := e.tracer.Start(ctx, "experiment.Run", trace.WithAttributes(
		attribute.String("experiment.name", e.name),
	))
	defer span.End()

	inv := &invocation{}

	if err := e.control.context(ctx).Err(); err != nil {
		return e.finish(span, &Observation[T]{name: e.control.Name, err: err, cancelled: true}, inv, nil)
	}

	if !e.shouldRun(ctx, inv) {
		span.SetAttributes(attribute.Bool("experiment.candidates_ran", false))
		return e.finish(span, capture(ctx, e.control), inv, nil)
	}
	span.SetAttributes(attribute.Bool("experiment.candidates_ran", true))

	ordered := e.order(ctx, inv)
	observations := concurrency.Batch(ctx, ordered, e.concurrency, e.observe)

	var control *Observation[T]
	candidates := make([]*Observation[T], 0, e.candidates)
	for _, o := range observations {
		if o.name == e.control.Name {
			control = o
			continue
		}
		candidates = append(candidates, o)
	}

	if control.Cancelled() {
		return e.finish(span, control, inv, nil)
	}

	result := e.aggregator(inv).aggregate(ctx, control, candidates, e.contexts)
	span.SetAttributes(
		attribute.Bool("experiment.matched", result.Matched()),
		attribute.Int("experiment.mismatched", len(result.mismatched)),
		attribute.Int("experiment.ignored", len(result.ignored)),
	)

	e.publish(ctx, inv, result)

	var mismatch error
	if e.throwOnMismatch && result.IsMismatched() {
		mismatch = &MismatchError[T, C]{Experiment: e.name, Result: result}
	}
	return e.finish(span, control, inv, mismatch)
}

// finish turns the control observation into Run's return values.
func (e *Experiment[T, C]) finish(span trace.Span, control *Observation[T], inv *invocation, mismatch error) (T, error) {
	if control.Cancelled() {
		err := errors.With(control.err, ErrControlCancelled)
		traceError(span, err)
		var zero T
		return zero, err
	}

	if mismatch != nil {
		traceError(span, mismatch)
		return control.value, inv.join(mismatch)
	}

	if control.Thrown() {
		traceError(span, control.err)
		return control.value, control.err
	}

	return control.value, inv.join(nil)
}

func (e *Experiment[T, C]) shouldRun(ctx context.Context, inv *invocation) bool {
	if e.candidates == 0 {
		return false
	}

	if e.enabler != nil {
		enabled, err := protect(func() (bool, error) {
			return e.enabler.Enabled(ctx, e.name)
		})
		if err != nil {
			e.report(ctx, inv, OpEnabled, err)
			return false
		}
		if !enabled {
			e.logger.DebugWithContext(ctx, "experiment disabled", zap.String("experiment", e.name))
			return false
		}
	}

	if e.runIf != nil {
		run, err := protect(func() (bool, error) {
			return e.runIf(ctx)
		})
		if err != nil {
			e.report(ctx, inv, OpRunIf, err)
			return false
		}
		if !run {
			e.logger.DebugWithContext(ctx, "experiment run_if rejected", zap.String("experiment", e.name))
			return false
		}
	}

	if e.beforeRun != nil {
		_, err := protect(func() (struct{}, error) {
			return struct{}{}, e.beforeRun(ctx)
		})
		if err != nil {
			e.report(ctx, inv, OpBeforeRun, err)
			return false
		}
	}

	return true
}

// order falls back to control first when the orderer fails or returns a
// different set of behaviors.
func (e *Experiment[T, C]) order(ctx context.Context, inv *invocation) []NamedBehavior[T] {
	ordered, err := protect(func() ([]NamedBehavior[T], error) {
		return e.orderer.Order(ctx, slices.Clone(e.behaviors))
	})
	if err == nil && !sameBehaviors(e.behaviors, ordered) {
		err = errOrdererChangedInput
	}
	if err != nil {
		e.report(ctx, inv, OpOrder, err)
		return e.behaviors
	}
	return ordered
}

func (e *Experiment[T, C]) observe(ctx context.Context, b NamedBehavior[T]) *Observation[T] {
	ctx, span := e.tracer.Start(ctx, "experiment.behavior", trace.WithAttributes(
		attribute.String("experiment.name", e.name),
		attribute.String("experiment.behavior", b.Name),
		attribute.Bool("experiment.control", b.Name == e.control.Name),
	))
	defer span.End()

	o := capture(ctx, b)
	span.SetAttributes(attribute.Bool("experiment.cancelled", o.cancelled))
	if o.Thrown() {
		traceError(span, o.err)
	}
	return o
}

func (e *Experiment[T, C]) publish(ctx context.Context, inv *invocation, result *Result[T, C]) {
	_, err := protect(func() (struct{}, error) {
		return struct{}{}, e.publisher.Publish(ctx, result)
	})
	if err != nil {
		e.report(ctx, inv, OpPublish, err)
	}
}

func (e *Experiment[T, C]) aggregator(inv *invocation) *aggregator[T, C] {
	return &aggregator[T, C]{
		experiment:  e.name,
		equivalence: e.equivalence,
		ignore:      e.ignore,
		cleaner:     e.cleaner,
		report: func(ctx context.Context, op Operation, err error) {
			e.report(ctx, inv, op, err)
		},
	}
}

// report hands an internal failure to the FailureReporter and keeps whatever
// it chooses to surface. A panicking reporter surfaces its panic.
func (e *Experiment[T, C]) report(ctx context.Context, inv *invocation, op Operation, err error) {
	opErr := &OperationError{Experiment: e.name, Op: op, Err: err}
	e.logger.DebugWithContext(ctx, "experiment operation failed",
		zap.String("experiment", e.name),
		zap.Stringer("operation", op),
		zap.Error(err),
	)

	surfaced, panicErr := protect(func() (error, error) {
		return e.onFailure(ctx, opErr), nil
	})
	if panicErr != nil {
		surfaced = panicErr
	}
	if surfaced != nil {
		inv.add(surfaced)
	}
}

// invocation holds the failures surfaced during one call to Run.
type invocation struct {
	mu       sync.Mutex
	failures []error
}

func (inv *invocation) add(err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.failures = append(inv.failures, err)
}

// join returns first followed by the surfaced failures as a single error, or
// nil when there is nothing to return.
func (inv *invocation) join(first error) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if first != nil && len(inv.failures) == 0 {
		return first
	}
	if first == nil && len(inv.failures) == 1 {
		return inv.failures[0]
	}
	if first == nil && len(inv.failures) == 0 {
		return nil
	}
	return stderrors.Join(append([]error{first}, inv.failures...)...)
}

func traceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
