package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rpsmatch/internal/game"
	"github.com/lox/rpsmatch/internal/randutil"
)

func TestTransitionTableRowsSumToOne(t *testing.T) {
	t.Parallel()

	tables := NewTables(0.9)
	for _, table := range []TransitionTable{tables.Positive, tables.Negative, tables.Nil} {
		for ref := game.Rock; ref <= game.Scissors; ref++ {
			sum := 0.0
			for mv := game.Rock; mv <= game.Scissors; mv++ {
				sum += table[ref][mv]
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestTransitionTableTargets(t *testing.T) {
	t.Parallel()

	tables := NewTables(0.9)
	for ref := game.Rock; ref <= game.Scissors; ref++ {
		assert.Equal(t, 0.9, tables.Positive[ref][ref.Beater()])
		assert.Equal(t, 0.9, tables.Negative[ref][ref.LoserTo()])
		assert.Equal(t, 0.9, tables.Nil[ref][ref])
		assert.InDelta(t, 0.05, tables.Positive[ref][ref], 1e-9)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, name := range StrategyNames() {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.String())
	}

	s, err := ParseStrategy("PREV_MOVE_POSITIVE")
	require.NoError(t, err)
	assert.Equal(t, PrevMovePositive, s)

	_, err = ParseStrategy("always_rock")
	assert.Error(t, err)
}

func TestEngineDeterministicAtProbOne(t *testing.T) {
	t.Parallel()

	cases := []struct {
		strategy Strategy
		own, opp game.Move
		outcome  game.Outcome
		want     game.Move
	}{
		{PrevMovePositive, game.Rock, game.Scissors, game.Win, game.Paper},
		{PrevMoveNegative, game.Rock, game.Scissors, game.Win, game.Scissors},
		{OppPrevMovePositive, game.Rock, game.Scissors, game.Win, game.Rock},
		{OppPrevMoveNil, game.Rock, game.Paper, game.Loss, game.Paper},
		{WinStayLoseShift, game.Rock, game.Scissors, game.Win, game.Rock},
		{WinStayLoseShift, game.Rock, game.Paper, game.Loss, game.Paper},
		{WinStayLoseShift, game.Rock, game.Rock, game.Tie, game.Paper},
	}
	for _, tc := range cases {
		e := NewEngine(tc.strategy, 1.0, randutil.New(1), nil)
		e.Observe(tc.own, tc.opp, tc.outcome)
		for i := 0; i < 20; i++ {
			assert.Equal(t, tc.want, e.Next(), "strategy %s", tc.strategy)
			e.Observe(tc.own, tc.opp, tc.outcome)
		}
	}
}

func TestEngineFirstRoundIsUniform(t *testing.T) {
	t.Parallel()

	e := NewEngine(PrevMovePositive, 1.0, randutil.New(42), nil)
	seen := map[game.Move]int{}
	for i := 0; i < 300; i++ {
		e.Reset()
		seen[e.Next()]++
	}
	for m := game.Rock; m <= game.Scissors; m++ {
		assert.Greater(t, seen[m], 0, "move %s never drawn", m)
	}
	assert.Len(t, seen, 3)
}

func TestEngineNoneReferenceFallsBackToUniform(t *testing.T) {
	t.Parallel()

	// A timeout move cannot be a table reference; the draw stays legal.
	e := NewEngine(PrevMovePositive, 1.0, randutil.New(7), nil)
	e.Observe(game.None, game.Rock, game.Loss)
	for i := 0; i < 50; i++ {
		assert.True(t, e.Next().IsReal())
	}
}

func TestEngineDistributionFollowsDominantProb(t *testing.T) {
	t.Parallel()

	e := NewEngine(PrevMovePositive, 0.9, randutil.New(99), nil)
	const trials = 3000
	hits := 0
	for i := 0; i < trials; i++ {
		e.Observe(game.Rock, game.Rock, game.Tie)
		if e.Next() == game.Paper {
			hits++
		}
	}
	ratio := float64(hits) / trials
	assert.InDelta(t, 0.9, ratio, 0.03)
}

func TestEngineResetClearsHistory(t *testing.T) {
	t.Parallel()

	e := NewEngine(OppPrevMoveNil, 1.0, randutil.New(3), nil)
	e.Observe(game.Rock, game.Paper, game.Loss)
	assert.Equal(t, game.Paper, e.Next())

	e.Reset()
	seen := map[game.Move]bool{}
	for i := 0; i < 200; i++ {
		seen[e.Next()] = true
		e.Reset()
	}
	assert.Len(t, seen, 3, "post-reset draws are uniform again")
}
