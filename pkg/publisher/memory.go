package publisher

import (
	"context"
	"slices"
	"sync"

	"github.com/openfga/scientist/pkg/experiment"
)

// InMemory keeps every published result. It is safe for concurrent use.
type InMemory[T, C any] struct {
	mu      sync.Mutex
	results []*experiment.Result[T, C]
}

var _ experiment.Publisher[int, int] = (*InMemory[int, int])(nil)

func NewInMemory[T, C any]() *InMemory[T, C] {
	return &InMemory[T, C]{}
}

func (m *InMemory[T, C]) Publish(_ context.Context, result *experiment.Result[T, C]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

// Results returns the published results in publish order.
func (m *InMemory[T, C]) Results() []*experiment.Result[T, C] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.results)
}

func (m *InMemory[T, C]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// Mismatched returns the published results that mismatched.
func (m *InMemory[T, C]) Mismatched() []*experiment.Result[T, C] {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*experiment.Result[T, C]
	for _, r := range m.results {
		if r.IsMismatched() {
			out = append(out, r)
		}
	}
	return out
}

func (m *InMemory[T, C]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = nil
}
