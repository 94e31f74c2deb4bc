package pool

import (
	"github.com/simplexbft/simplex-go/consensus/tracker"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// slotState is the mutable per-slot aggregation state: the vote ledgers
// of all validators, the running weighted tallies, and the idempotence
// guards recording which quorum events have already been observed for
// this slot. All access happens on the pool's single worker.
type slotState struct {
	slot simplex.Slot

	// one vote ledger per validator, created lazily
	trackers map[uint32]*tracker.VoteTracker

	// running weighted tallies of applied votes
	notarizeTally map[simplex.Identifier]uint64
	finalizeTally map[simplex.Identifier]uint64
	skipWeight    uint64

	// quorum observations; once set, further quorum crossings of the
	// same kind are no-ops
	notarized *simplex.CandidateID
	skipped   bool
	finalized *simplex.CandidateID

	// availableBase carried into this slot: the most recent notarized
	// candidate available to build on. baseKnown distinguishes "genesis
	// base" (nil, known) from "predecessor chain not yet resolved".
	base      *simplex.CandidateID
	baseKnown bool
}

func newSlotState(slot simplex.Slot) *slotState {
	return &slotState{
		slot:          slot,
		trackers:      make(map[uint32]*tracker.VoteTracker),
		notarizeTally: make(map[simplex.Identifier]uint64),
		finalizeTally: make(map[simplex.Identifier]uint64),
	}
}

// trackerFor returns the vote ledger of the given validator, creating
// it on first use.
func (s *slotState) trackerFor(validator uint32) *tracker.VoteTracker {
	t, ok := s.trackers[validator]
	if !ok {
		t = tracker.NewVoteTracker()
		s.trackers[validator] = t
	}
	return t
}

// resolved reports whether the slot has reached a terminal resolution
// for the purpose of chain building: it is notarized or skipped.
func (s *slotState) resolved() bool {
	return s.notarized != nil || s.skipped
}

// votesFor collects all applied votes equal to the given vote body, for
// certificate construction.
func (s *slotState) votesFor(vote simplex.Vote) []*simplex.SignedVote {
	var votes []*simplex.SignedVote
	for _, t := range s.trackers {
		sv := t.VoteOfKind(vote.Kind)
		if sv != nil && sv.Vote == vote {
			votes = append(votes, sv)
		}
	}
	return votes
}
