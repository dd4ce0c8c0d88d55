package experiment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfga/scientist/pkg/logger"
)

// Settings is the fully resolved configuration of an experiment. It is read
// once by New; changing it afterwards has no effect on the experiment.
type Settings[T, C any] struct {
	// Control is the trusted behavior. Its Name defaults to ControlName.
	Control NamedBehavior[T]

	// Candidates are the behaviors validated against the control. Names must be
	// unique and must differ from the control's name.
	Candidates []NamedBehavior[T]

	// Concurrency is the number of behaviors that may run at the same time. It
	// must be at least 1; 1 runs every behavior sequentially.
	Concurrency int

	// Compare, when set, decides equivalence of two values ahead of Equality
	// and of the values' own equality.
	Compare CompareFunc[T]

	// Equality is used when Compare is not set.
	Equality EqualityComparer[T]

	// Ignore lists predicates that may turn a mismatch into an ignored result.
	Ignore []IgnorePredicate[T]

	// Orderer arranges the behaviors before they run. Defaults to Random.
	Orderer Orderer[T]

	// Enabler is consulted before every run. Nil means always enabled.
	Enabler Enabler

	// RunIf is an experiment specific predicate consulted after Enabler.
	RunIf func(ctx context.Context) (bool, error)

	// BeforeRun is called once before the behaviors run, only when candidates run.
	BeforeRun func(ctx context.Context) error

	Contexts *Contexts

	// ThrowOnMismatch makes Run return a *MismatchError once a mismatched
	// result has been handed to the publisher.
	ThrowOnMismatch bool

	Cleaner   Cleaner[T, C]
	Publisher Publisher[T, C]
	OnFailure FailureReporter
	Logger    logger.Logger
	Tracer    trace.Tracer
}

// Validate reports configuration errors. New calls it, so invalid settings
// are rejected before anything runs.
func (s *Settings[T, C]) Validate() error {
	if s.Control.Run == nil {
		return ErrMissingControl
	}

	if s.Concurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, s.Concurrency)
	}

	controlName := s.Control.Name
	if controlName == "" {
		controlName = ControlName
	}

	seen := make(map[string]struct{}, len(s.Candidates))
	for i, candidate := range s.Candidates {
		if candidate.Name == "" {
			return fmt.Errorf("%w: candidate %d has no name", ErrInvalidCandidate, i)
		}
		if candidate.Run == nil {
			return fmt.Errorf("%w: candidate '%s' has no behavior", ErrInvalidCandidate, candidate.Name)
		}
		if candidate.Name == controlName {
			return fmt.Errorf("%w: '%s' is the control's name", ErrDuplicateCandidate, candidate.Name)
		}
		if _, ok := seen[candidate.Name]; ok {
			return fmt.Errorf("%w: '%s'", ErrDuplicateCandidate, candidate.Name)
		}
		seen[candidate.Name] = struct{}{}
	}

	return nil
}
