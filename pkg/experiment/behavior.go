package experiment

import (
	"context"
)

// ControlName is the name given to the control behavior when none is set.
const ControlName = "control"

// Behavior is one code path taking part in an experiment.
type Behavior[T any] func(ctx context.Context) (T, error)

// NamedBehavior is a Behavior together with its name and, optionally, its own
// cancellation context. When Context is nil the behavior runs with the context
// passed to Experiment.Run; when set, it takes precedence over it.
type NamedBehavior[T any] struct {
	Name    string
	Run     Behavior[T]
	Context context.Context

	control bool
}

// Candidate is shorthand for a NamedBehavior without its own context.
func Candidate[T any](name string, run Behavior[T]) NamedBehavior[T] {
	return NamedBehavior[T]{Name: name, Run: run}
}

// IsControl reports whether b is the experiment's control. Only the engine
// marks a behavior as the control.
func (b NamedBehavior[T]) IsControl() bool {
	return b.control
}

func (b NamedBehavior[T]) context(fallback context.Context) context.Context {
	if b.Context != nil {
		return b.Context
	}
	return fallback
}
