package experiment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func returns[T any](v T) Behavior[T] {
	return func(context.Context) (T, error) {
		return v, nil
	}
}

func fails[T any](err error) Behavior[T] {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

// recordingPublisher keeps every result it receives.
type recordingPublisher[T, C any] struct {
	mu      sync.Mutex
	results []*Result[T, C]
	err     error
}

func (p *recordingPublisher[T, C]) Publish(_ context.Context, result *Result[T, C]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return p.err
}

func (p *recordingPublisher[T, C]) published() []*Result[T, C] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Result[T, C](nil), p.results...)
}

// failureRecorder is a FailureReporter that remembers and suppresses every failure.
type failureRecorder struct {
	mu       sync.Mutex
	failures []*OperationError
}

func (r *failureRecorder) report(_ context.Context, err *OperationError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
	return nil
}

func (r *failureRecorder) ops() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]Operation, 0, len(r.failures))
	for _, f := range r.failures {
		ops = append(ops, f.Op)
	}
	return ops
}

var errBoom = errors.New("boom")

func names[T any](observations []*Observation[T]) []string {
	out := make([]string, 0, len(observations))
	for _, o := range observations {
		out = append(out, o.Name())
	}
	return out
}
