package consensus

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Consumer consumes outbound events produced by the consensus core.
// Implementations must:
//   - be concurrency safe
//   - be non-blocking
//   - handle repetition of the same events (with some processing overhead)
type Consumer interface {

	// OnNotarizationObserved is emitted when a slot first accumulates a
	// notarization quorum. The certificate is the transferable witness
	// of the quorum event.
	OnNotarizationObserved(cert *simplex.Certificate)

	// OnFinalizationObserved is emitted when a slot first accumulates a
	// finalization quorum. All slot state below the finalized slot has
	// been pruned by the time this event fires.
	OnFinalizationObserved(cert *simplex.Certificate)

	// OnLeaderWindowObserved is emitted, strictly in window order, when
	// the predecessor chain of a leader window's first slot has been
	// fully resolved. base identifies the most recent notarized
	// candidate available to seed the window; nil denotes genesis.
	OnLeaderWindowObserved(windowStart simplex.Slot, base *simplex.CandidateID)

	// OnMisbehaviorDetected is emitted whenever the core detects a
	// protocol violation by a remote validator, together with a
	// self-contained proof. The core does not apply penalties.
	OnMisbehaviorDetected(report *simplex.MisbehaviorReport)

	// OnOwnVoteCast is emitted when the local validator casts a vote of
	// any kind. The vote has already been broadcast to peers.
	OnOwnVoteCast(sv *simplex.SignedVote)

	// OnCandidateResolved is emitted when the resolver completes a
	// fetch of a candidate and its notarization certificate, after the
	// pair has been persisted.
	OnCandidateResolved(cc *simplex.CertifiedCandidate)
}
