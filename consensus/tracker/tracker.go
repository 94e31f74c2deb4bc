// Package tracker implements the per-validator vote ledger of the
// consensus core: for every (validator, slot) pair it enforces at most
// one notarize, one skip and one finalize vote, and converts any
// conflicting submission into a self-contained equivocation proof.
package tracker

import (
	"fmt"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// VoteTracker is the vote ledger of a single validator for a single
// slot. It is a state machine over three optional vote slots, one per
// vote kind.
//
// Invariants upheld:
//   - at most one vote per kind is recorded
//   - if both a notarize and a finalize vote are recorded, they target
//     the same candidate
//   - a finalize and a skip vote are never both recorded
//
// A submission violating an invariant is rejected with a
// simplex.DoubleVoteError carrying both conflicting signed votes; the
// ledger state is left as if the submission never happened, so an
// equivocating vote can never contribute to quorum weight.
//
// Not concurrency safe; the vote pool mutates all trackers on its
// single worker.
type VoteTracker struct {
	notarize *simplex.SignedVote
	skip     *simplex.SignedVote
	finalize *simplex.SignedVote
}

// NewVoteTracker instantiates an empty ledger for one (validator, slot).
func NewVoteTracker() *VoteTracker {
	return &VoteTracker{}
}

// Add submits a signed vote to the ledger.
// Returns:
//   - (true, nil) if the vote was recorded; only this outcome may
//     contribute to quorum weight
//   - (false, nil) if an identical vote was already recorded; duplicates
//     are expected under retransmission and are a no-op
//   - (false, simplex.DoubleVoteError) if the vote conflicts with a
//     previously recorded vote; the error carries both votes as an
//     equivocation proof and the submission is rolled back
func (t *VoteTracker) Add(sv *simplex.SignedVote) (bool, error) {
	slot := t.slotFor(sv.Vote.Kind)
	if existing := *slot; existing != nil {
		if existing.Vote == sv.Vote {
			// identical vote body; a differing signature over the same
			// body carries no new information either
			return false, nil
		}
		return false, simplex.NewDoubleVoteErrorf(existing, sv,
			"validator %d cast conflicting %s votes for slot %d (%v and %v)",
			sv.ValidatorIndex, sv.Vote.Kind, sv.Vote.Slot, existing.Vote, sv.Vote)
	}
	*slot = sv

	// cross-kind invariants; roll back the just-added vote on violation
	if t.notarize != nil && t.finalize != nil && t.notarize.Vote.CandidateHash != t.finalize.Vote.CandidateHash {
		first := t.other(slot, t.notarize, t.finalize)
		*slot = nil
		return false, simplex.NewDoubleVoteErrorf(first, sv,
			"validator %d notarized and finalized different candidates for slot %d",
			sv.ValidatorIndex, sv.Vote.Slot)
	}
	if t.finalize != nil && t.skip != nil {
		first := t.other(slot, t.finalize, t.skip)
		*slot = nil
		return false, simplex.NewDoubleVoteErrorf(first, sv,
			"validator %d cast both a finalize and a skip vote for slot %d",
			sv.ValidatorIndex, sv.Vote.Slot)
	}

	return true, nil
}

// NotarizeVote returns the recorded notarize vote, or nil.
func (t *VoteTracker) NotarizeVote() *simplex.SignedVote { return t.notarize }

// SkipVote returns the recorded skip vote, or nil.
func (t *VoteTracker) SkipVote() *simplex.SignedVote { return t.skip }

// FinalizeVote returns the recorded finalize vote, or nil.
func (t *VoteTracker) FinalizeVote() *simplex.SignedVote { return t.finalize }

// VoteOfKind returns the recorded vote of the given kind, or nil.
func (t *VoteTracker) VoteOfKind(kind simplex.VoteKind) *simplex.SignedVote {
	return *t.slotFor(kind)
}

// Votes returns all recorded votes.
func (t *VoteTracker) Votes() []*simplex.SignedVote {
	votes := make([]*simplex.SignedVote, 0, 3)
	for _, sv := range []*simplex.SignedVote{t.notarize, t.skip, t.finalize} {
		if sv != nil {
			votes = append(votes, sv)
		}
	}
	return votes
}

func (t *VoteTracker) slotFor(kind simplex.VoteKind) **simplex.SignedVote {
	switch kind {
	case simplex.VoteNotarize:
		return &t.notarize
	case simplex.VoteFinalize:
		return &t.finalize
	case simplex.VoteSkip:
		return &t.skip
	default:
		panic(fmt.Sprintf("unknown vote kind (%d)", kind))
	}
}

// other returns whichever of a, b is not the vote stored in the given
// slot, i.e. the pre-existing vote of a detected cross-kind conflict.
func (t *VoteTracker) other(slot **simplex.SignedVote, a, b *simplex.SignedVote) *simplex.SignedVote {
	if *slot == a {
		return b
	}
	return a
}
