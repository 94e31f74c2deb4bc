package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/utils/unittest"
)

const slot = simplex.Slot(5)

func vote(t *testing.T, v simplex.Vote) *simplex.SignedVote {
	sv, err := simplex.NewSignedVote(simplex.UntrustedSignedVote{
		ValidatorIndex: 7,
		Vote:           v,
		Signature:      unittest.SignatureFixture(),
	})
	require.NoError(t, err)
	return sv
}

func TestFirstVoteApplied(t *testing.T) {
	tracker := NewVoteTracker()
	sv := vote(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(slot)))

	applied, err := tracker.Add(sv)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, sv, tracker.NotarizeVote())
}

func TestDuplicateIsNoOp(t *testing.T) {
	tracker := NewVoteTracker()
	id := unittest.CandidateIDFixture(slot)
	sv := vote(t, simplex.NewNotarizeVote(id))

	_, err := tracker.Add(sv)
	require.NoError(t, err)

	// same vote body under a different signature carries no new
	// information either
	dup := vote(t, simplex.NewNotarizeVote(id))
	applied, err := tracker.Add(dup)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, sv, tracker.NotarizeVote())
}

// A second notarize vote for a different candidate must yield an
// equivocation proof and leave the first vote untouched.
func TestNotarizeEquivocation(t *testing.T) {
	tracker := NewVoteTracker()
	first := vote(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(slot)))
	second := vote(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(slot)))

	_, err := tracker.Add(first)
	require.NoError(t, err)

	applied, err := tracker.Add(second)
	assert.False(t, applied)
	doubleVote, ok := simplex.AsDoubleVoteError(err)
	require.True(t, ok)
	assert.Equal(t, first, doubleVote.FirstVote)
	assert.Equal(t, second, doubleVote.ConflictingVote)
	assert.Equal(t, first, tracker.NotarizeVote())
}

// Notarize and skip votes for the same slot may coexist: timing out on
// a slot after having supported a candidate is legitimate.
func TestNotarizeAndSkipCoexist(t *testing.T) {
	tracker := NewVoteTracker()

	applied, err := tracker.Add(vote(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(slot))))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = tracker.Add(vote(t, simplex.NewSkipVote(slot)))
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Len(t, tracker.Votes(), 2)
}

func TestFinalizeMustMatchNotarize(t *testing.T) {
	t.Run("matching candidate accepted", func(t *testing.T) {
		tracker := NewVoteTracker()
		id := unittest.CandidateIDFixture(slot)

		_, err := tracker.Add(vote(t, simplex.NewNotarizeVote(id)))
		require.NoError(t, err)
		applied, err := tracker.Add(vote(t, simplex.NewFinalizeVote(id)))
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("mismatching candidate rejected and rolled back", func(t *testing.T) {
		tracker := NewVoteTracker()
		notarize := vote(t, simplex.NewNotarizeVote(unittest.CandidateIDFixture(slot)))
		finalize := vote(t, simplex.NewFinalizeVote(unittest.CandidateIDFixture(slot)))

		_, err := tracker.Add(notarize)
		require.NoError(t, err)

		applied, err := tracker.Add(finalize)
		assert.False(t, applied)
		doubleVote, ok := simplex.AsDoubleVoteError(err)
		require.True(t, ok)
		assert.Equal(t, notarize, doubleVote.FirstVote)
		assert.Nil(t, tracker.FinalizeVote())
	})
}

func TestFinalizeAndSkipConflict(t *testing.T) {
	t.Run("skip after finalize", func(t *testing.T) {
		tracker := NewVoteTracker()
		id := unittest.CandidateIDFixture(slot)
		_, err := tracker.Add(vote(t, simplex.NewNotarizeVote(id)))
		require.NoError(t, err)
		finalize := vote(t, simplex.NewFinalizeVote(id))
		_, err = tracker.Add(finalize)
		require.NoError(t, err)

		skip := vote(t, simplex.NewSkipVote(slot))
		applied, err := tracker.Add(skip)
		assert.False(t, applied)
		doubleVote, ok := simplex.AsDoubleVoteError(err)
		require.True(t, ok)
		assert.Equal(t, finalize, doubleVote.FirstVote)
		assert.Nil(t, tracker.SkipVote())
	})

	t.Run("finalize after skip", func(t *testing.T) {
		tracker := NewVoteTracker()
		skip := vote(t, simplex.NewSkipVote(slot))
		_, err := tracker.Add(skip)
		require.NoError(t, err)

		finalize := vote(t, simplex.NewFinalizeVote(unittest.CandidateIDFixture(slot)))
		applied, err := tracker.Add(finalize)
		assert.False(t, applied)
		doubleVote, ok := simplex.AsDoubleVoteError(err)
		require.True(t, ok)
		assert.Equal(t, skip, doubleVote.FirstVote)
		assert.Nil(t, tracker.FinalizeVote())
	})
}
