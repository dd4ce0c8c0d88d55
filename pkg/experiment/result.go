package experiment

import (
	"slices"

	"github.com/google/uuid"
)

// Result is the outcome of one experiment invocation in which candidates ran.
// It is built once and never modified; publishers may keep it.
type Result[T, C any] struct {
	id         uuid.UUID
	experiment string
	control    *Observation[T]
	candidates []*Observation[T]
	mismatched []*Observation[T]
	ignored    []*Observation[T]
	cancelled  []*Observation[T]
	contexts   *Contexts
	cleaned    map[string]C
}

// ID uniquely identifies the invocation that produced the result.
func (r *Result[T, C]) ID() uuid.UUID {
	return r.id
}

func (r *Result[T, C]) ExperimentName() string {
	return r.experiment
}

func (r *Result[T, C]) Control() *Observation[T] {
	return r.control
}

// Candidates returns every candidate observation in the order they were captured.
func (r *Result[T, C]) Candidates() []*Observation[T] {
	return slices.Clone(r.candidates)
}

// Mismatched returns the candidates that were neither equivalent to the control nor ignored.
func (r *Result[T, C]) Mismatched() []*Observation[T] {
	return slices.Clone(r.mismatched)
}

// Ignored returns the candidates that differed from the control but were
// accepted by an ignore predicate.
func (r *Result[T, C]) Ignored() []*Observation[T] {
	return slices.Clone(r.ignored)
}

// Cancelled returns the candidates that were aborted through their context.
// They count as neither matched nor mismatched.
func (r *Result[T, C]) Cancelled() []*Observation[T] {
	return slices.Clone(r.cancelled)
}

func (r *Result[T, C]) Contexts() *Contexts {
	return r.contexts
}

// Matched is true when no candidate mismatched. Ignored and cancelled
// candidates do not prevent a match.
func (r *Result[T, C]) Matched() bool {
	return len(r.mismatched) == 0
}

func (r *Result[T, C]) IsMismatched() bool {
	return !r.Matched()
}

// Cleaned returns the publish-time projection of an observation's value, as
// produced by Settings.Cleaner. Failed observations clean to the zero value.
func (r *Result[T, C]) Cleaned(o *Observation[T]) C {
	return r.cleaned[o.name]
}
