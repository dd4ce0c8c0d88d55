package experiment

import (
	"context"

	"github.com/google/uuid"
)

// IgnorePredicate decides whether a mismatch between the control and a
// candidate value should be ignored.
type IgnorePredicate[T any] func(ctx context.Context, control, candidate T) (bool, error)

// Cleaner projects a value into the form that publishers see.
type Cleaner[T, C any] func(value T) (C, error)

type aggregator[T, C any] struct {
	experiment  string
	equivalence equivalence[T]
	ignore      []IgnorePredicate[T]
	cleaner     Cleaner[T, C]
	report      func(ctx context.Context, op Operation, err error)
}

// aggregate classifies every candidate observation against the control. It has
// no side effects besides failure reports, so running it twice over the same
// observations yields the same classification.
func (a *aggregator[T, C]) aggregate(ctx context.Context, control *Observation[T], candidates []*Observation[T], contexts *Contexts) *Result[T, C] {
	result := &Result[T, C]{
		id:         uuid.New(),
		experiment: a.experiment,
		control:    control,
		candidates: candidates,
		contexts:   contexts.clone(),
		cleaned:    make(map[string]C, len(candidates)+1),
	}

	for _, candidate := range candidates {
		if candidate.Cancelled() {
			result.cancelled = append(result.cancelled, candidate)
			continue
		}

		equivalent, err := a.equivalence.equivalent(control, candidate)
		if err != nil {
			a.report(ctx, OpCompare, err)
			equivalent = false
		}
		if equivalent {
			continue
		}

		if a.ignored(ctx, control, candidate) {
			result.ignored = append(result.ignored, candidate)
		} else {
			result.mismatched = append(result.mismatched, candidate)
		}
	}

	for _, o := range append([]*Observation[T]{control}, candidates...) {
		if o.err != nil {
			continue
		}
		cleaned, err := protect(func() (C, error) {
			return a.cleaner(o.value)
		})
		if err != nil {
			a.report(ctx, OpClean, err)
			continue
		}
		result.cleaned[o.name] = cleaned
	}

	return result
}

// ignored reports whether any predicate accepts the mismatch. A failing
// predicate counts as not accepting it.
func (a *aggregator[T, C]) ignored(ctx context.Context, control, candidate *Observation[T]) bool {
	for _, predicate := range a.ignore {
		ok, err := protect(func() (bool, error) {
			return predicate(ctx, control.value, candidate.value)
		})
		if err != nil {
			a.report(ctx, OpIgnore, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// castCleaner is the Cleaner used when none is configured. It passes values
// through when T and C agree and yields the zero C otherwise.
func castCleaner[T, C any](value T) (C, error) {
	cleaned, _ := any(value).(C)
	return cleaned, nil
}
