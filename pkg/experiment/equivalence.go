package experiment

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// CompareFunc decides whether a candidate value is equivalent to the control
// value. When set it takes precedence over every other equality rule.
type CompareFunc[T any] func(control, candidate T) (bool, error)

// EqualityComparer is a value equality used when no CompareFunc is set.
type EqualityComparer[T any] interface {
	Equal(a, b T) bool
}

// EqualityFunc adapts a function to EqualityComparer.
type EqualityFunc[T any] func(a, b T) bool

func (f EqualityFunc[T]) Equal(a, b T) bool {
	return f(a, b)
}

type equivalence[T any] struct {
	compare  CompareFunc[T]
	equality EqualityComparer[T]
}

// equivalent compares a candidate observation with the control observation.
// When both returned a value the first configured rule decides: the
// CompareFunc, then the EqualityComparer, then the value's own equality. When
// both failed, the errors must share their dynamic type and message. An error
// is never equivalent to a value. A returned error means the comparison itself
// failed; the pair is then not equivalent.
func (e equivalence[T]) equivalent(control, candidate *Observation[T]) (bool, error) {
	switch {
	case control.Thrown() && candidate.Thrown():
		return sameError(control.err, candidate.err), nil
	case control.Thrown() || candidate.Thrown():
		return false, nil
	}

	return protect(func() (bool, error) {
		switch {
		case e.compare != nil:
			return e.compare(control.value, candidate.value)
		case e.equality != nil:
			return e.equality.Equal(control.value, candidate.value), nil
		default:
			return defaultEqual(control.value, candidate.value), nil
		}
	})
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// defaultEqual uses the value's Equal(T) method when it has one, treats two
// nil values as equal and otherwise compares structurally, including
// unexported fields.
func defaultEqual[T any](a, b T) bool {
	aNil, bNil := isNil(a), isNil(b)
	if aNil || bNil {
		return aNil && bNil
	}
	if eq, ok := any(a).(interface{ Equal(T) bool }); ok {
		return eq.Equal(b)
	}
	return cmp.Equal(a, b, exportAll)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func sameError(a, b error) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b) && a.Error() == b.Error()
}
