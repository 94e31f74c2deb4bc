package simplex

import (
	"fmt"
)

// VoteKind enumerates the three vote kinds of the protocol.
type VoteKind uint8

const (
	// VoteNotarize proposes that a given candidate is the accepted
	// content for its slot.
	VoteNotarize VoteKind = iota + 1
	// VoteFinalize confirms irreversibility of an already-notarized
	// candidate.
	VoteFinalize
	// VoteSkip proposes that a slot be left empty due to leader
	// unavailability.
	VoteSkip
)

func (k VoteKind) String() string {
	switch k {
	case VoteNotarize:
		return "notarize"
	case VoteFinalize:
		return "finalize"
	case VoteSkip:
		return "skip"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Vote is the body of a single vote, carrying only the minimal
// identifying data for its target. For skip votes CandidateHash is
// zero; for notarize and finalize votes it identifies the candidate.
type Vote struct {
	Kind          VoteKind
	Slot          Slot
	CandidateHash Identifier
}

// NewNotarizeVote returns a notarize vote for the given candidate.
func NewNotarizeVote(id CandidateID) Vote {
	return Vote{Kind: VoteNotarize, Slot: id.Slot, CandidateHash: id.Hash}
}

// NewFinalizeVote returns a finalize vote for the given candidate.
func NewFinalizeVote(id CandidateID) Vote {
	return Vote{Kind: VoteFinalize, Slot: id.Slot, CandidateHash: id.Hash}
}

// NewSkipVote returns a skip vote for the given slot.
func NewSkipVote(slot Slot) Vote {
	return Vote{Kind: VoteSkip, Slot: slot}
}

// CandidateID returns the candidate targeted by a notarize or finalize
// vote. For skip votes the hash component is zero.
func (v Vote) CandidateID() CandidateID {
	return CandidateID{Slot: v.Slot, Hash: v.CandidateHash}
}

func (v Vote) String() string {
	if v.Kind == VoteSkip {
		return fmt.Sprintf("skip(%d)", v.Slot)
	}
	return fmt.Sprintf("%s(%v)", v.Kind, v.CandidateID())
}

// SignedVote is a vote together with the signature of the casting
// validator over the session-scoped encoding of the vote body.
type SignedVote struct {
	ValidatorIndex uint32
	Vote           Vote
	Signature      []byte
}

// UntrustedSignedVote is an input-only representation of a SignedVote
// used for construction.
type UntrustedSignedVote SignedVote

// NewSignedVote performs structural validation of a signed vote.
// All errors indicate a valid SignedVote cannot be constructed from the
// input; cryptographic verification is a separate concern.
func NewSignedVote(untrusted UntrustedSignedVote) (*SignedVote, error) {
	switch untrusted.Vote.Kind {
	case VoteNotarize, VoteFinalize:
		if untrusted.Vote.CandidateHash == ZeroID {
			return nil, fmt.Errorf("%s vote must reference a candidate", untrusted.Vote.Kind)
		}
	case VoteSkip:
		if untrusted.Vote.CandidateHash != ZeroID {
			return nil, fmt.Errorf("skip vote must not reference a candidate")
		}
	default:
		return nil, fmt.Errorf("invalid vote kind (%d)", untrusted.Vote.Kind)
	}
	if len(untrusted.Signature) == 0 {
		return nil, fmt.Errorf("Signature must not be empty")
	}
	sv := SignedVote(untrusted)
	return &sv, nil
}

// ID returns a content identifier for the signed vote.
func (sv *SignedVote) ID() Identifier {
	return MakeID(sv)
}
