package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rpsmatch/internal/game"
)

func testParticipant(id string) *Participant {
	return NewParticipant(zerolog.Nop(), id, nil)
}

func TestRegistryPairsInArrivalOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zerolog.Nop())
	now := time.Now()

	e1, joined, err := r.FindOrCreate(testParticipant("a"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.False(t, e1.sess.Full())

	e2, joined, err := r.FindOrCreate(testParticipant("b"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Same(t, e1, e2)
	assert.True(t, e2.sess.Full())
	require.NotNil(t, e2.sess.Current)
	assert.Equal(t, 1, e2.sess.Current.Index)

	// A third arrival opens a fresh session.
	e3, joined, err := r.FindOrCreate(testParticipant("c"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	assert.False(t, joined)
	assert.NotSame(t, e1, e3)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryTestFlagPromotion(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zerolog.Nop())
	now := time.Now()

	_, _, err := r.FindOrCreate(testParticipant("a"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	entry, joined, err := r.FindOrCreate(testParticipant("b"), true, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	require.True(t, joined)
	assert.True(t, entry.sess.IsTest)
}

func TestRegistryEntryFor(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zerolog.Nop())
	now := time.Now()

	entry, _, err := r.FindOrCreate(testParticipant("a"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)

	assert.Same(t, entry, r.EntryFor("a"))
	assert.Nil(t, r.EntryFor("stranger"))
}

func TestRegistryJoinSpecificSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zerolog.Nop())
	now := time.Now()

	entry, _, err := r.FindOrCreate(testParticipant("a"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)

	joined, err := r.Join(entry.sess.ID, testParticipant("bot"), false, now)
	require.NoError(t, err)
	assert.Same(t, entry, joined)
	assert.True(t, entry.sess.Full())

	// Filled sessions refuse further joins.
	_, err = r.Join(entry.sess.ID, testParticipant("late"), false, now)
	assert.ErrorIs(t, err, game.ErrSessionFull)

	_, err = r.Join("no-such-session", testParticipant("x"), false, now)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryEvict(t *testing.T) {
	t.Parallel()

	r := NewRegistry(zerolog.Nop())
	now := time.Now()

	entry, _, err := r.FindOrCreate(testParticipant("a"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)
	_, _, err = r.FindOrCreate(testParticipant("b"), false, 12, game.DefaultPoints, now)
	require.NoError(t, err)

	r.Evict(entry.sess.ID)
	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.EntryFor("a"))
	assert.Nil(t, r.EntryFor("b"))

	// Evicting twice is harmless.
	r.Evict(entry.sess.ID)
}
