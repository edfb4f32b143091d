package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rpsmatch/internal/game"
)

func playedSession(t *testing.T) *game.Session {
	t.Helper()
	now := time.Now()
	s := game.NewSession("sess-1", false, 2, game.DefaultPoints, &game.Participant{ID: "p1"}, now)
	require.NoError(t, s.Join(&game.Participant{ID: "p2"}, false, now))

	require.NoError(t, s.RecordMove(0, game.Rock, 310))
	require.NoError(t, s.RecordMove(1, game.Scissors, 440))
	require.NoError(t, s.ResolveCurrent())
	require.NoError(t, s.AdvanceRound(now))

	require.NoError(t, s.RecordMove(0, game.Paper, 200))
	require.NoError(t, s.RecordMove(1, game.Paper, 210))
	require.NoError(t, s.ResolveCurrent())
	s.ArchiveCurrent()
	return s
}

func TestSerializeFullSession(t *testing.T) {
	t.Parallel()

	rec := Serialize(playedSession(t))

	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "p1", rec.Player1ID)
	assert.Equal(t, "p2", rec.Player2ID)
	assert.Equal(t, 2, rec.RoundCount)
	assert.False(t, rec.IsTest)
	assert.NotZero(t, rec.GameBeginTS)
	require.Len(t, rec.Rounds, 2)

	r1 := rec.Rounds[0]
	assert.Equal(t, 1, r1.RoundIndex)
	require.NotNil(t, r1.Player1Move)
	assert.Equal(t, "rock", *r1.Player1Move)
	require.NotNil(t, r1.Player2Move)
	assert.Equal(t, "scissors", *r1.Player2Move)
	assert.Equal(t, int64(310), r1.Player1RTMs)
	assert.Equal(t, int64(440), r1.Player2RTMs)
	require.NotNil(t, r1.Player1Outcome)
	assert.Equal(t, "win", *r1.Player1Outcome)
	assert.Equal(t, 3, r1.Player1Points)
	assert.Equal(t, -1, r1.Player2Points)
	assert.Equal(t, 0, r1.Player1Total)
	assert.Equal(t, 0, r1.Player2Total)

	r2 := rec.Rounds[1]
	assert.Equal(t, 2, r2.RoundIndex)
	assert.Equal(t, 3, r2.Player1Total, "totals carried in are the sum of prior rounds")
	assert.Equal(t, -1, r2.Player2Total)
	require.NotNil(t, r2.Player1Outcome)
	assert.Equal(t, "tie", *r2.Player1Outcome)
}

func TestSerializePartialFinalRound(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := game.NewSession("sess-2", false, 12, game.DefaultPoints, &game.Participant{ID: "p1"}, now)
	require.NoError(t, s.Join(&game.Participant{ID: "p2"}, false, now))
	require.NoError(t, s.RecordMove(0, game.Rock, 180))
	s.ArchiveCurrent()

	rec := Serialize(s)
	require.Len(t, rec.Rounds, 1)
	r := rec.Rounds[0]
	require.NotNil(t, r.Player1Move)
	assert.Equal(t, "rock", *r.Player1Move)
	assert.Nil(t, r.Player2Move)
	assert.Nil(t, r.Player1Outcome)
	assert.Nil(t, r.Player2Outcome)
	assert.Zero(t, r.Player1Points)
}

func TestSerializeUnpairedSession(t *testing.T) {
	t.Parallel()

	s := game.NewSession("sess-3", true, 12, game.DefaultPoints, &game.Participant{ID: "p1"}, time.Now())
	rec := Serialize(s)

	assert.True(t, rec.IsTest)
	assert.Equal(t, "p1", rec.Player1ID)
	assert.Empty(t, rec.Player2ID)
	assert.NotNil(t, rec.Rounds)
	assert.Empty(t, rec.Rounds)
	assert.Zero(t, rec.GameBeginTS, "never paired, never began")
}
