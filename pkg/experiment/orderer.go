package experiment

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"
)

// Orderer arranges the control and the candidates before they run. It must
// return the same behaviors it was given, each exactly once.
type Orderer[T any] interface {
	Order(ctx context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error)
}

// OrderFunc adapts a function to the Orderer interface.
type OrderFunc[T any] func(ctx context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error)

func (f OrderFunc[T]) Order(ctx context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error) {
	return f(ctx, behaviors)
}

type controlFirst[T any] struct{}

// ControlFirst runs the control before any candidate. Candidates keep their
// registration order.
func ControlFirst[T any]() Orderer[T] {
	return controlFirst[T]{}
}

func (controlFirst[T]) Order(_ context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error) {
	return controlFirstOrder(behaviors), nil
}

type controlLast[T any] struct{}

// ControlLast is the exact reverse of ControlFirst: candidates in reverse
// registration order, then the control.
func ControlLast[T any]() Orderer[T] {
	return controlLast[T]{}
}

func (controlLast[T]) Order(_ context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error) {
	ordered := controlFirstOrder(behaviors)
	slices.Reverse(ordered)
	return ordered, nil
}

func controlFirstOrder[T any](behaviors []NamedBehavior[T]) []NamedBehavior[T] {
	ordered := slices.Clone(behaviors)
	slices.SortStableFunc(ordered, func(a, b NamedBehavior[T]) int {
		switch {
		case a.control == b.control:
			return 0
		case a.control:
			return -1
		default:
			return 1
		}
	})
	return ordered
}

// Shuffler owns a random source shared by every experiment that orders its
// behaviors randomly. Draws are serialized; the lock is held for the draw only.
type Shuffler struct {
	mu     sync.Mutex
	random *rand.Rand
}

func NewShuffler(seed int64) *Shuffler {
	return &Shuffler{random: rand.New(rand.NewSource(seed))}
}

// Perm returns a uniformly random permutation of [0, n).
func (s *Shuffler) Perm(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Perm(n)
}

// Intn returns a uniformly random number in [0, n).
func (s *Shuffler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Intn(n)
}

var defaultShuffler = NewShuffler(time.Now().UnixNano())

// DefaultShuffler returns the process wide Shuffler used by Random.
func DefaultShuffler() *Shuffler {
	return defaultShuffler
}

type random[T any] struct {
	shuffler *Shuffler
}

// Random shuffles control and candidates uniformly. This is the default orderer.
func Random[T any]() Orderer[T] {
	return RandomWith[T](defaultShuffler)
}

// RandomWith shuffles with the given Shuffler, which tests can seed.
func RandomWith[T any](s *Shuffler) Orderer[T] {
	return random[T]{shuffler: s}
}

func (o random[T]) Order(_ context.Context, behaviors []NamedBehavior[T]) ([]NamedBehavior[T], error) {
	perm := o.shuffler.Perm(len(behaviors))
	ordered := make([]NamedBehavior[T], len(behaviors))
	for i, j := range perm {
		ordered[i] = behaviors[j]
	}
	return ordered, nil
}

// sameBehaviors reports whether ordered holds exactly the names of original.
func sameBehaviors[T any](original, ordered []NamedBehavior[T]) bool {
	if len(original) != len(ordered) {
		return false
	}
	seen := make(map[string]int, len(original))
	for _, b := range original {
		seen[b.Name]++
	}
	for _, b := range ordered {
		seen[b.Name]--
		if seen[b.Name] < 0 {
			return false
		}
	}
	return true
}
