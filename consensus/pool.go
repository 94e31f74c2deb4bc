package consensus

import (
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
)

// ParentResolution is the outcome of waiting for a candidate's parent
// chain to resolve. Exactly one of the fields is set: Base carries the
// resolved parent on success (nil Base with Resolved=true denotes
// genesis); Misbehavior carries a proof that the candidate conflicts
// with the certified chain.
type ParentResolution struct {
	Resolved    bool
	Base        *simplex.CandidateID
	Misbehavior *simplex.MisbehaviorReport
}

// Pool is the vote-tallying protocol state machine. It ingests signed
// votes and certificates, maintains the windowed per-slot aggregation
// state, emits notarization/finalization/leader-window events, and
// performs standstill recovery.
//
// Votes may be submitted concurrently; they are queued and processed
// asynchronously by a single worker, so all slot-state mutation is
// single-threaded.
type Pool interface {
	module.Component

	// SubmitVote queues a signed vote for processing. Invalid votes are
	// reported as misbehavior or dropped; submission never fails.
	SubmitVote(sv *simplex.SignedVote)

	// SubmitCertificate queues an externally received quorum
	// certificate. A certificate for an already-observed quorum is a
	// no-op; an unverifiable certificate is dropped.
	SubmitCertificate(cert *simplex.Certificate)

	// AwaitParentResolved registers interest in the resolution of the
	// chain between the candidate's parent and the candidate's slot.
	// The returned channel delivers exactly one ParentResolution once
	// every intervening slot is skipped and the parent slot is
	// notarized with a matching candidate, or once a conflict with the
	// certified chain is detected.
	AwaitParentResolved(candidate *simplex.Candidate) <-chan ParentResolution

	// FirstNonFinalizedSlot returns the lower bound of the tracked slot
	// window. Slots below the bound are finalized and pruned.
	FirstNonFinalizedSlot() simplex.Slot
}
