package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/openfga/scientist/pkg/logger"
)

var (
	ErrMissingControl      = errors.New("experiment control behavior is required")
	ErrInvalidName         = errors.New("experiment name is required")
	ErrInvalidConcurrency  = errors.New("experiment concurrency must be at least 1")
	ErrInvalidCandidate    = errors.New("invalid candidate behavior")
	ErrDuplicateCandidate  = errors.New("duplicate candidate name")
	ErrMismatch            = errors.New("experiment observations mismatched")
	ErrControlCancelled    = errors.New("experiment control was cancelled")
	errOrdererChangedInput = errors.New("orderer must return every behavior exactly once")
)

// Operation names one of the experiment's own moving parts. Failures of these
// parts are reported to the FailureReporter and never reach the control path.
type Operation int

const (
	OpCompare Operation = iota + 1
	OpIgnore
	OpEnabled
	OpRunIf
	OpPublish
	OpBeforeRun
	OpOrder
	OpClean
)

func (o Operation) String() string {
	switch o {
	case OpCompare:
		return "compare"
	case OpIgnore:
		return "ignore"
	case OpEnabled:
		return "enabled"
	case OpRunIf:
		return "run_if"
	case OpPublish:
		return "publish"
	case OpBeforeRun:
		return "before_run"
	case OpOrder:
		return "order"
	case OpClean:
		return "clean"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// OperationError is an internal failure tagged with the operation it came from.
type OperationError struct {
	Experiment string
	Op         Operation
	Err        error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("experiment '%s': %s failed: %v", e.Experiment, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// FailureReporter receives every internal failure of an experiment. By the
// time it is called the engine has already applied the operation's safe
// default (not equivalent, not ignored, gate closed, publish recorded as
// failed), so the reporter only decides whether the failure is surfaced.
//
// A non-nil return is handed back by Experiment.Run next to the control's
// value, after the result has been published. Return nil to suppress.
type FailureReporter func(ctx context.Context, err *OperationError) error

// DefaultFailureReporter surfaces every internal failure unchanged.
func DefaultFailureReporter(_ context.Context, err *OperationError) error {
	return err
}

// LogFailures returns a FailureReporter that logs internal failures and suppresses them.
func LogFailures(l logger.Logger) FailureReporter {
	return func(ctx context.Context, err *OperationError) error {
		l.WarnWithContext(ctx, "experiment operation failed",
			zap.String("experiment", err.Experiment),
			zap.Stringer("operation", err.Op),
			zap.Error(err.Err),
		)
		return nil
	}
}

// PanicError is recorded in place of a panic raised by a behavior or by a
// caller supplied callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// MismatchError is returned by Run when Settings.ThrowOnMismatch is set and a
// candidate mismatched. It is only returned after the result was published.
// It unwraps to the control's own error, if the control failed.
type MismatchError[T, C any] struct {
	Experiment string
	Result     *Result[T, C]
}

func (e *MismatchError[T, C]) Error() string {
	return fmt.Sprintf("experiment '%s': %d of %d candidates mismatched",
		e.Experiment, len(e.Result.mismatched), len(e.Result.candidates))
}

func (e *MismatchError[T, C]) Is(target error) bool {
	return target == ErrMismatch
}

func (e *MismatchError[T, C]) Unwrap() error {
	return e.Result.control.err
}

// protect calls fn and turns a panic into a *PanicError.
func protect[R any](fn func() (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
