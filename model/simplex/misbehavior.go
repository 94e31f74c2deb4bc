package simplex

import (
	"fmt"
)

// MisbehaviorReport accuses a validator of a protocol violation and
// carries a self-contained proof. The consensus core only detects and
// reports misbehavior; applying penalties is an external concern.
type MisbehaviorReport struct {
	AccusedValidator uint32
	// Exactly one of the proofs below is set.
	ConflictingVotes     *ConflictingVotesProof
	ConflictingCandidate *ConflictingCandidateProof
}

// ConflictingVotesProof proves equivocation: two signed votes from the
// same validator for the same slot with conflicting targets.
type ConflictingVotesProof struct {
	First       *SignedVote
	Conflicting *SignedVote
}

// ConflictingCandidateProof proves that a leader's candidate conflicts
// with the chain proven by a quorum certificate, for example a
// candidate whose parent diverges from the notarized chain, or an
// invalid candidate paired with the certificate naming its leader.
type ConflictingCandidateProof struct {
	Candidate   *Candidate
	Certificate *Certificate
	Reason      string
}

// NewConflictingVotesReport builds a misbehavior report from a detected
// double vote.
func NewConflictingVotesReport(doubleVote *DoubleVoteError) *MisbehaviorReport {
	return &MisbehaviorReport{
		AccusedValidator: doubleVote.FirstVote.ValidatorIndex,
		ConflictingVotes: &ConflictingVotesProof{
			First:       doubleVote.FirstVote,
			Conflicting: doubleVote.ConflictingVote,
		},
	}
}

// NewConflictingCandidateReport builds a misbehavior report against the
// leader of a candidate that conflicts with certified chain state.
func NewConflictingCandidateReport(candidate *Candidate, cert *Certificate, reason string) *MisbehaviorReport {
	return &MisbehaviorReport{
		AccusedValidator: candidate.LeaderIndex,
		ConflictingCandidate: &ConflictingCandidateProof{
			Candidate:   candidate,
			Certificate: cert,
			Reason:      reason,
		},
	}
}

func (r *MisbehaviorReport) String() string {
	switch {
	case r.ConflictingVotes != nil:
		return fmt.Sprintf("misbehavior{validator %d, conflicting votes %v / %v}",
			r.AccusedValidator, r.ConflictingVotes.First.Vote, r.ConflictingVotes.Conflicting.Vote)
	case r.ConflictingCandidate != nil:
		return fmt.Sprintf("misbehavior{validator %d, conflicting candidate: %s}",
			r.AccusedValidator, r.ConflictingCandidate.Reason)
	default:
		return fmt.Sprintf("misbehavior{validator %d}", r.AccusedValidator)
	}
}
