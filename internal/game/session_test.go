package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, rounds int) *Session {
	t.Helper()
	now := time.Now()
	s := NewSession("sess-1", false, rounds, DefaultPoints, &Participant{ID: "p1"}, now)
	require.NoError(t, s.Join(&Participant{ID: "p2"}, false, now))
	return s
}

func TestSessionPairing(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewSession("sess-1", false, 12, DefaultPoints, &Participant{ID: "p1"}, now)
	assert.False(t, s.Full())
	assert.Equal(t, StatusAwaitingOpponent, s.Participants[0].Status)
	assert.Nil(t, s.Current)

	require.NoError(t, s.Join(&Participant{ID: "p2"}, false, now))
	assert.True(t, s.Full())
	assert.Equal(t, StatusInRound, s.Participants[0].Status)
	assert.Equal(t, StatusInRound, s.Participants[1].Status)
	require.NotNil(t, s.Current)
	assert.Equal(t, 1, s.Current.Index)

	// Second slot is never reassigned.
	err := s.Join(&Participant{ID: "p3"}, false, now)
	assert.ErrorIs(t, err, ErrSessionFull)
	assert.Equal(t, "p2", s.Participants[1].ID)
}

func TestTestFlagPromotionIsSticky(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewSession("sess-1", false, 12, DefaultPoints, &Participant{ID: "p1"}, now)
	require.NoError(t, s.Join(&Participant{ID: "p2"}, true, now))
	assert.True(t, s.IsTest)

	s2 := NewSession("sess-2", true, 12, DefaultPoints, &Participant{ID: "p1"}, now)
	require.NoError(t, s2.Join(&Participant{ID: "p2"}, false, now))
	assert.True(t, s2.IsTest, "test status never reverts")
}

func TestSlotLookup(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 12)
	slot, ok := s.SlotOf("p1")
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	slot, ok = s.SlotOf("p2")
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	_, ok = s.SlotOf("stranger")
	assert.False(t, ok)

	assert.Equal(t, "p2", s.Opponent(0).ID)
	assert.Equal(t, "p1", s.Opponent(1).ID)
}

func TestRecordMoveAndResolve(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 12)

	require.NoError(t, s.RecordMove(0, Rock, 420))
	assert.Equal(t, RoundAwaitingOne, s.Current.Phase)
	assert.False(t, s.BothMoved())

	// Duplicate submission within the round is rejected.
	err := s.RecordMove(0, Paper, 100)
	assert.ErrorIs(t, err, ErrMoveAlreadySubmitted)
	assert.Equal(t, Rock, s.Current.Moves[0])

	// Resolution requires both moves.
	assert.ErrorIs(t, s.ResolveCurrent(), ErrRoundUnresolved)

	require.NoError(t, s.RecordMove(1, Scissors, 610))
	assert.True(t, s.BothMoved())
	require.NoError(t, s.ResolveCurrent())

	r := s.Current
	assert.Equal(t, RoundComplete, r.Phase)
	assert.Equal(t, [2]Outcome{Win, Loss}, r.Outcomes)
	assert.Equal(t, [2]int{3, -1}, r.Points)
	assert.Equal(t, [2]int{0, 0}, r.TotalsBefore)
	assert.Equal(t, [2]int{3, -1}, s.Totals)
	assert.Equal(t, [2]int64{420, 610}, r.LatenciesMs)

	// Completed rounds are immutable.
	assert.ErrorIs(t, s.RecordMove(0, Paper, 1), ErrRoundComplete)
	assert.ErrorIs(t, s.ResolveCurrent(), ErrRoundComplete)
}

func TestAdvanceRoundBookkeeping(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 12)

	// Advancing an unresolved round is an error.
	require.Error(t, s.AdvanceRound(time.Now()))

	require.NoError(t, s.RecordMove(0, Paper, 1))
	require.NoError(t, s.RecordMove(1, Rock, 1))
	require.NoError(t, s.ResolveCurrent())

	s.MarkReady(0)
	assert.False(t, s.BothReady())
	s.MarkReady(1)
	assert.True(t, s.BothReady())

	require.NoError(t, s.AdvanceRound(time.Now()))
	require.Len(t, s.Completed, 1)
	assert.Equal(t, 2, s.Current.Index)
	assert.Equal(t, [2]int{3, -1}, s.Current.TotalsBefore, "prior totals equal sum of rounds so far")
	assert.Equal(t, StatusInRound, s.Participants[0].Status)
	assert.Equal(t, StatusInRound, s.Participants[1].Status)
}

func TestTotalsAccumulateAcrossRounds(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 12)
	moves := [][2]Move{
		{Rock, Scissors}, // p1 wins
		{Paper, Paper},   // tie
		{Scissors, Rock}, // p1 loses
		{None, Rock},     // p1 loses via timeout move
	}
	wantTotals := [][2]int{{3, -1}, {3, -1}, {2, 2}, {1, 5}}

	for i, mv := range moves {
		require.NoError(t, s.RecordMove(0, mv[0], 1))
		require.NoError(t, s.RecordMove(1, mv[1], 1))
		require.NoError(t, s.ResolveCurrent())
		assert.Equal(t, wantTotals[i], s.Totals, "after round %d", i+1)
		require.NoError(t, s.AdvanceRound(time.Now()))
	}
}

func TestOnFinalRound(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 2)
	assert.False(t, s.OnFinalRound())

	require.NoError(t, s.RecordMove(0, Rock, 1))
	require.NoError(t, s.RecordMove(1, Rock, 1))
	require.NoError(t, s.ResolveCurrent())
	require.NoError(t, s.AdvanceRound(time.Now()))
	assert.True(t, s.OnFinalRound())
}

func TestArchiveCurrentPartialRound(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 12)
	require.NoError(t, s.RecordMove(0, Rock, 250))

	s.ArchiveCurrent()
	assert.Nil(t, s.Current)
	require.Len(t, s.Completed, 1)

	r := s.Completed[0]
	assert.True(t, r.Submitted[0])
	assert.False(t, r.Submitted[1])
	assert.NotEqual(t, RoundComplete, r.Phase)

	// Idempotent once the current round is gone.
	s.ArchiveCurrent()
	assert.Len(t, s.Completed, 1)
}

func TestExitBarrier(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, 1)
	require.NoError(t, s.RecordMove(0, Rock, 1))
	require.NoError(t, s.RecordMove(1, Paper, 1))
	require.NoError(t, s.ResolveCurrent())

	s.MarkExited(0)
	assert.False(t, s.BothExited())
	s.MarkExited(1)
	assert.True(t, s.BothExited())
}
