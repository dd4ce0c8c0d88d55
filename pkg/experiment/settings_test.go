package experiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsValidate(t *testing.T) {
	valid := func() Settings[int, int] {
		return Settings[int, int]{
			Control:     NamedBehavior[int]{Run: returns(1)},
			Candidates:  []NamedBehavior[int]{Candidate("a", returns(1))},
			Concurrency: 1,
		}
	}

	t.Run("valid", func(t *testing.T) {
		s := valid()
		require.NoError(t, s.Validate())
	})

	t.Run("missing_control", func(t *testing.T) {
		s := valid()
		s.Control.Run = nil
		require.ErrorIs(t, s.Validate(), ErrMissingControl)
	})

	t.Run("zero_concurrency", func(t *testing.T) {
		s := valid()
		s.Concurrency = 0
		require.ErrorIs(t, s.Validate(), ErrInvalidConcurrency)
	})

	t.Run("negative_concurrency", func(t *testing.T) {
		s := valid()
		s.Concurrency = -3
		require.EqualError(t, s.Validate(), "experiment concurrency must be at least 1: got -3")
	})

	t.Run("duplicate_candidate", func(t *testing.T) {
		s := valid()
		s.Candidates = append(s.Candidates, Candidate("a", returns(2)))
		require.ErrorIs(t, s.Validate(), ErrDuplicateCandidate)
	})

	t.Run("candidate_named_like_control", func(t *testing.T) {
		s := valid()
		s.Candidates = append(s.Candidates, Candidate(ControlName, returns(2)))
		require.ErrorIs(t, s.Validate(), ErrDuplicateCandidate)
	})

	t.Run("candidate_named_like_custom_control", func(t *testing.T) {
		s := valid()
		s.Control.Name = "legacy"
		s.Candidates = append(s.Candidates, Candidate("legacy", returns(2)))
		require.ErrorIs(t, s.Validate(), ErrDuplicateCandidate)
	})

	t.Run("unnamed_candidate", func(t *testing.T) {
		s := valid()
		s.Candidates = append(s.Candidates, Candidate("", returns(2)))
		require.ErrorIs(t, s.Validate(), ErrInvalidCandidate)
	})

	t.Run("candidate_without_behavior", func(t *testing.T) {
		s := valid()
		s.Candidates = append(s.Candidates, NamedBehavior[int]{Name: "b"})
		require.ErrorIs(t, s.Validate(), ErrInvalidCandidate)
	})
}

func TestNew(t *testing.T) {
	t.Run("requires_name", func(t *testing.T) {
		_, err := New("", Settings[int, int]{Control: NamedBehavior[int]{Run: returns(1)}, Concurrency: 1})
		require.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("wraps_validation_error", func(t *testing.T) {
		_, err := New("sum", Settings[int, int]{Control: NamedBehavior[int]{Run: returns(1)}})
		require.ErrorIs(t, err, ErrInvalidConcurrency)
		require.ErrorContains(t, err, "experiment 'sum'")
	})

	t.Run("defaults", func(t *testing.T) {
		e, err := New("sum", Settings[int, int]{Control: NamedBehavior[int]{Run: returns(1)}, Concurrency: 1})
		require.NoError(t, err)
		require.Equal(t, "sum", e.Name())
		require.Equal(t, ControlName, e.control.Name)
		require.True(t, e.behaviors[0].IsControl())
		require.NotNil(t, e.orderer)
		require.NotNil(t, e.publisher)
		require.NotNil(t, e.onFailure)
		require.NotNil(t, e.logger)
		require.NotNil(t, e.tracer)
	})

	t.Run("candidates_cannot_claim_control", func(t *testing.T) {
		c := Candidate("a", returns(1))
		c.control = true
		e, err := New("sum", Settings[int, int]{
			Control:     NamedBehavior[int]{Run: returns(1)},
			Candidates:  []NamedBehavior[int]{c},
			Concurrency: 1,
		})
		require.NoError(t, err)
		require.False(t, e.behaviors[1].IsControl())
	})
}
