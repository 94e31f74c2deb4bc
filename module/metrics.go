package module

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// ConsensusMetrics exposes the local meters of the consensus core.
// Implementations must be non-blocking and concurrency safe.
type ConsensusMetrics interface {
	// VoteProcessed is called for every vote that was applied to the
	// slot state, labelled by vote kind.
	VoteProcessed(kind simplex.VoteKind)

	// InboundQueueLength sets the current length of a component's
	// inbound message queue.
	InboundQueueLength(component string, length uint)

	// MisbehaviorReported is called for every emitted misbehavior report.
	MisbehaviorReported()

	// SlotNotarized sets the highest notarized slot.
	SlotNotarized(slot simplex.Slot)

	// SlotFinalized sets the highest finalized slot.
	SlotFinalized(slot simplex.Slot)

	// ResolutionStarted/ResolutionCompleted track the number of
	// in-flight resolver requests.
	ResolutionStarted()
	ResolutionCompleted()

	// ResolutionRetried is called for every resolver retry round trip.
	ResolutionRetried()
}
