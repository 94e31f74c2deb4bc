package consensus

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// PublicKey verifies signatures produced by one validator. The concrete
// scheme is supplied by the key management layer; the consensus core
// only needs the verification primitive.
type PublicKey interface {
	// Verify returns true if sig is a valid signature of msg under this key.
	Verify(sig []byte, msg []byte) bool
}

// Committee is the read-only validator-set table for one session. All
// values are fixed at session start and shared by reference across
// every component; implementations must be concurrency safe for reads.
type Committee interface {

	// SessionID returns the identifier binding votes to this session.
	SessionID() simplex.Identifier

	// Size returns the number of validators in the set.
	Size() int

	// TotalWeight returns the summed weight of all validators.
	TotalWeight() uint64

	// QuorumThreshold returns the minimal weight required for a quorum
	// certificate, i.e. WeightThresholdToBuildQC(TotalWeight()).
	QuorumThreshold() uint64

	// WeightOf returns the weight of the validator with the given index.
	// Error returns:
	//   - simplex.InvalidSignerError if the index is not in the set
	WeightOf(index uint32) (uint64, error)

	// KeyOf returns the public key of the validator with the given index.
	// Error returns:
	//   - simplex.InvalidSignerError if the index is not in the set
	KeyOf(index uint32) (PublicKey, error)

	// LeaderForSlot returns the index of the validator expected to
	// collate the candidate for the given slot.
	LeaderForSlot(slot simplex.Slot) uint32

	// WindowSize returns the number of contiguous slots in one leader
	// window.
	WindowSize() uint64

	// Self returns the index of the local validator within the set.
	Self() uint32
}
