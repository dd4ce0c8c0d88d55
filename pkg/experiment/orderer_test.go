package experiment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func behaviorSet() []NamedBehavior[int] {
	return []NamedBehavior[int]{
		Candidate("a", returns(1)),
		{Name: "control", Run: returns(0), control: true},
		Candidate("b", returns(2)),
		Candidate("c", returns(3)),
	}
}

func behaviorNames[T any](behaviors []NamedBehavior[T]) []string {
	out := make([]string, 0, len(behaviors))
	for _, b := range behaviors {
		out = append(out, b.Name)
	}
	return out
}

func TestOrderers(t *testing.T) {
	ctx := context.Background()

	t.Run("control_first", func(t *testing.T) {
		ordered, err := ControlFirst[int]().Order(ctx, behaviorSet())
		require.NoError(t, err)
		require.Equal(t, []string{"control", "a", "b", "c"}, behaviorNames(ordered))
		require.True(t, ordered[0].IsControl())
	})

	t.Run("control_last_is_reverse_of_control_first", func(t *testing.T) {
		ordered, err := ControlLast[int]().Order(ctx, behaviorSet())
		require.NoError(t, err)
		require.Equal(t, []string{"c", "b", "a", "control"}, behaviorNames(ordered))
	})

	t.Run("does_not_modify_input", func(t *testing.T) {
		input := behaviorSet()
		_, err := ControlLast[int]().Order(ctx, input)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "control", "b", "c"}, behaviorNames(input))
	})

	t.Run("random_is_a_permutation", func(t *testing.T) {
		orderer := RandomWith[int](NewShuffler(1))
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			ordered, err := orderer.Order(ctx, behaviorSet())
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"control", "a", "b", "c"}, behaviorNames(ordered))
			seen[ordered[0].Name] = true
		}
		// every behavior shows up first at some point
		require.Len(t, seen, 4)
	})

	t.Run("random_is_deterministic_for_a_seed", func(t *testing.T) {
		first, err := RandomWith[int](NewShuffler(7)).Order(ctx, behaviorSet())
		require.NoError(t, err)
		second, err := RandomWith[int](NewShuffler(7)).Order(ctx, behaviorSet())
		require.NoError(t, err)
		require.Equal(t, behaviorNames(first), behaviorNames(second))
	})

	t.Run("shared_shuffler_is_safe_for_concurrent_use", func(t *testing.T) {
		orderer := Random[int]()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ordered, err := orderer.Order(ctx, behaviorSet())
				assert.NoError(t, err)
				assert.Len(t, ordered, 4)
			}()
		}
		wg.Wait()
	})

	t.Run("order_func", func(t *testing.T) {
		orderer := OrderFunc[int](func(_ context.Context, behaviors []NamedBehavior[int]) ([]NamedBehavior[int], error) {
			return []NamedBehavior[int]{behaviors[3], behaviors[2], behaviors[1], behaviors[0]}, nil
		})
		ordered, err := orderer.Order(ctx, behaviorSet())
		require.NoError(t, err)
		require.Equal(t, []string{"c", "b", "control", "a"}, behaviorNames(ordered))
	})
}

func TestSameBehaviors(t *testing.T) {
	set := behaviorSet()
	require.True(t, sameBehaviors(set, []NamedBehavior[int]{set[3], set[1], set[0], set[2]}))
	require.False(t, sameBehaviors(set, set[:3]))
	require.False(t, sameBehaviors(set, []NamedBehavior[int]{set[0], set[0], set[1], set[2]}))
}
