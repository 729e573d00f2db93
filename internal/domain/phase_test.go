package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to Phase
	}{
		{PhaseLobby, PhaseClues},
		{PhaseClues, PhaseGuessUs},
		{PhaseGuessUs, PhaseConfUs},
		{PhaseConfUs, PhaseLobby},
		{PhaseConfUs, PhaseClues},
		{PhaseConfUs, PhaseGuessThem},
		{PhaseGuessThem, PhaseConfThem},
		{PhaseConfThem, PhaseLobby},
		{PhaseConfThem, PhaseClues},
		{PhaseConfThem, PhaseReview},
		{PhaseReview, PhaseClues},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s must be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to Phase
	}{
		{PhaseLobby, PhaseGuessUs},
		{PhaseClues, PhaseClues},
		{PhaseClues, PhaseConfUs},
		{PhaseGuessUs, PhaseClues},
		{PhaseGuessUs, PhaseGuessThem},
		{PhaseConfUs, PhaseReview},
		{PhaseGuessThem, PhaseReview},
		{PhaseReview, PhaseReview},
		{PhaseReview, PhaseGuessUs},
		{PhaseFinished, PhaseClues},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s must be denied", tc.from, tc.to)
	}
}

func TestKnown(t *testing.T) {
	t.Parallel()

	for _, p := range []Phase{PhaseLobby, PhaseClues, PhaseGuessUs, PhaseConfUs, PhaseGuessThem, PhaseConfThem, PhaseReview} {
		assert.True(t, p.Known(), p)
	}
	assert.False(t, Phase("warmup").Known())
	assert.False(t, Phase("").Known())
}

func TestActivePlayerRotation(t *testing.T) {
	t.Parallel()

	roster := []string{"p1", "p2", "p3"}

	t.Run("rotates by round", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "p1", ActivePlayer(roster, 1))
		assert.Equal(t, "p2", ActivePlayer(roster, 2))
		assert.Equal(t, "p3", ActivePlayer(roster, 3))
		assert.Equal(t, "p1", ActivePlayer(roster, 4))
		assert.Equal(t, "p2", ActivePlayer(roster, 8))
	})

	t.Run("round zero clamps to one", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ActivePlayer(roster, 1), ActivePlayer(roster, 0))
	})

	t.Run("empty roster", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", ActivePlayer(nil, 1))
	})

	t.Run("solo team", func(t *testing.T) {
		t.Parallel()
		solo := []string{"only"}
		for r := 1; r <= TotalRounds; r++ {
			assert.Equal(t, "only", ActivePlayer(solo, r))
		}
	})
}
