package featureflags

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openfga/scientist/internal/mocks"
	"github.com/openfga/scientist/pkg/experiment"
)

func TestFlagEnabler(t *testing.T) {
	ctx := context.Background()

	t.Run("default_prefix", func(t *testing.T) {
		enabler := NewFlagEnabler(NewDefaultClient([]string{"experiment.check"}))

		enabled, err := enabler.Enabled(ctx, "check")
		require.NoError(t, err)
		require.True(t, enabled)

		enabled, err = enabler.Enabled(ctx, "list")
		require.NoError(t, err)
		require.False(t, enabled)
	})

	t.Run("custom_prefix", func(t *testing.T) {
		enabler := NewFlagEnabler(NewDefaultClient([]string{"check"}), WithFlagPrefix(""))
		enabled, err := enabler.Enabled(ctx, "check")
		require.NoError(t, err)
		require.True(t, enabled)
	})

	t.Run("hardcoded", func(t *testing.T) {
		enabled, err := NewFlagEnabler(NewHardcodedBooleanClient(true)).Enabled(ctx, "anything")
		require.NoError(t, err)
		require.True(t, enabled)
	})
}

func TestPercentEnabler(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects_invalid_percent", func(t *testing.T) {
		_, err := NewPercentEnabler(-1)
		require.ErrorIs(t, err, ErrInvalidPercent)
		_, err = NewPercentEnabler(100.5)
		require.ErrorIs(t, err, ErrInvalidPercent)
	})

	t.Run("threshold_rounds_to_basis_points", func(t *testing.T) {
		for percent, want := range map[float64]uint64{0.29: 29, 0.57: 57, 12.5: 1250, 99.99: 9999} {
			p, err := NewPercentEnabler(percent)
			require.NoError(t, err)
			require.Equal(t, want, p.threshold, "percent %v", percent)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		never, err := NewPercentEnabler(0)
		require.NoError(t, err)
		always, err := NewPercentEnabler(100)
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			enabled, err := never.Enabled(ctx, "exp")
			require.NoError(t, err)
			require.False(t, enabled)

			enabled, err = always.Enabled(ctx, "exp")
			require.NoError(t, err)
			require.True(t, enabled)
		}
	})

	t.Run("sampling_key_is_deterministic", func(t *testing.T) {
		enabler, err := NewPercentEnabler(50)
		require.NoError(t, err)

		enabledCount := 0
		for i := 0; i < 1000; i++ {
			keyed := WithSamplingKey(ctx, fmt.Sprintf("user:%d", i))
			first, err := enabler.Enabled(keyed, "exp")
			require.NoError(t, err)
			second, err := enabler.Enabled(keyed, "exp")
			require.NoError(t, err)
			require.Equal(t, first, second)
			if first {
				enabledCount++
			}
		}
		require.InDelta(t, 500, enabledCount, 100)
	})

	t.Run("random_without_key", func(t *testing.T) {
		enabler, err := NewPercentEnablerWithShuffler(25, experiment.NewShuffler(7))
		require.NoError(t, err)

		enabledCount := 0
		for i := 0; i < 4000; i++ {
			enabled, err := enabler.Enabled(ctx, "exp")
			require.NoError(t, err)
			if enabled {
				enabledCount++
			}
		}
		require.InDelta(t, 1000, enabledCount, 200)
	})
}

func TestCachedEnabler(t *testing.T) {
	ctx := context.Background()

	t.Run("caches_decisions", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockEnabler(ctrl)
		delegate.EXPECT().Enabled(gomock.Any(), "exp").Return(true, nil).Times(1)

		enabler, err := NewCachedEnabler(delegate, WithCacheTTL(time.Minute))
		require.NoError(t, err)
		t.Cleanup(enabler.Close)

		for i := 0; i < 3; i++ {
			enabled, err := enabler.Enabled(ctx, "exp")
			require.NoError(t, err)
			require.True(t, enabled)
		}
	})

	t.Run("keys_include_the_sampling_key", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockEnabler(ctrl)
		delegate.EXPECT().Enabled(gomock.Any(), "exp").Return(false, nil).Times(2)

		enabler, err := NewCachedEnabler(delegate)
		require.NoError(t, err)
		t.Cleanup(enabler.Close)

		_, err = enabler.Enabled(WithSamplingKey(ctx, "anne"), "exp")
		require.NoError(t, err)
		_, err = enabler.Enabled(WithSamplingKey(ctx, "bob"), "exp")
		require.NoError(t, err)
		_, err = enabler.Enabled(WithSamplingKey(ctx, "anne"), "exp")
		require.NoError(t, err)
	})

	t.Run("errors_are_not_cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		delegate := mocks.NewMockEnabler(ctrl)
		gomock.InOrder(
			delegate.EXPECT().Enabled(gomock.Any(), "exp").Return(false, errors.New("flag service down")),
			delegate.EXPECT().Enabled(gomock.Any(), "exp").Return(true, nil),
		)

		enabler, err := NewCachedEnabler(delegate)
		require.NoError(t, err)
		t.Cleanup(enabler.Close)

		_, err = enabler.Enabled(ctx, "exp")
		require.Error(t, err)

		enabled, err := enabler.Enabled(ctx, "exp")
		require.NoError(t, err)
		require.True(t, enabled)
	})
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	on := experiment.EnablerFunc(func(context.Context, string) (bool, error) { return true, nil })
	off := experiment.EnablerFunc(func(context.Context, string) (bool, error) { return false, nil })

	t.Run("conjunction", func(t *testing.T) {
		enabled, err := All(on, on).Enabled(ctx, "exp")
		require.NoError(t, err)
		require.True(t, enabled)

		enabled, err = All(on, off).Enabled(ctx, "exp")
		require.NoError(t, err)
		require.False(t, enabled)
	})

	t.Run("empty_is_enabled", func(t *testing.T) {
		enabled, err := All().Enabled(ctx, "exp")
		require.NoError(t, err)
		require.True(t, enabled)
	})

	t.Run("short_circuits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		never := mocks.NewMockEnabler(ctrl)
		never.EXPECT().Enabled(gomock.Any(), gomock.Any()).Times(0)

		enabled, err := All(off, never).Enabled(ctx, "exp")
		require.NoError(t, err)
		require.False(t, enabled)
	})

	t.Run("errors_fail_closed", func(t *testing.T) {
		failing := experiment.EnablerFunc(func(context.Context, string) (bool, error) { return true, errors.New("down") })
		enabled, err := All(on, failing).Enabled(ctx, "exp")
		require.Error(t, err)
		require.False(t, enabled)
	})
}

func TestWithExperiment(t *testing.T) {
	var ran bool
	value, err := experiment.Science(context.Background(), "flagged", experiment.Settings[int, int]{
		Control: experiment.NamedBehavior[int]{Run: func(context.Context) (int, error) { return 1, nil }},
		Candidates: []experiment.NamedBehavior[int]{experiment.Candidate("candidate", func(context.Context) (int, error) {
			ran = true
			return 1, nil
		})},
		Concurrency: 1,
		Enabler:     NewFlagEnabler(NewDefaultClient(nil)),
	})
	require.NoError(t, err)
	require.Equal(t, 1, value)
	require.False(t, ran)
}
