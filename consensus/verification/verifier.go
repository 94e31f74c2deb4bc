package verification

import (
	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Verifier checks votes and certificates against one session's
// validator set. It is stateless and safe for concurrent use.
type Verifier struct {
	committee consensus.Committee
}

var _ consensus.Verifier = (*Verifier)(nil)

// NewVerifier instantiates a Verifier for the given session.
func NewVerifier(committee consensus.Committee) *Verifier {
	return &Verifier{committee: committee}
}

// VerifyVote checks the signature of a single signed vote against the
// session-scoped encoding of its body.
// Error returns:
//   - simplex.InvalidVoteError if the signer index is not a member of
//     the validator set or the signature does not verify
func (v *Verifier) VerifyVote(sv *simplex.SignedVote) error {
	key, err := v.committee.KeyOf(sv.ValidatorIndex)
	if err != nil {
		return simplex.NewInvalidVoteErrorf(sv, "signer is not a member of the validator set: %w", err)
	}
	msg := simplex.VoteSignableMessage(v.committee.SessionID(), sv.Vote)
	if !key.Verify(sv.Signature, msg) {
		return simplex.NewInvalidVoteErrorf(sv, "%w", simplex.ErrInvalidSignature)
	}
	return nil
}

// VerifyCertificate checks an untrusted certificate. Every signer index
// must be in range and unique, every signature must verify against the
// certificate's vote, and the weight of verified signatures must reach
// the quorum threshold. A duplicated index rejects the whole
// certificate, not just the duplicate, and the advertised signature
// count is never trusted.
// Error returns:
//   - simplex.InvalidCertificateError if any check fails
func (v *Verifier) VerifyCertificate(cert *simplex.Certificate) error {
	msg := simplex.VoteSignableMessage(v.committee.SessionID(), cert.Vote)
	seen := make(map[uint32]struct{}, len(cert.Signatures))
	var accumulated uint64
	for _, s := range cert.Signatures {
		if _, ok := seen[s.ValidatorIndex]; ok {
			return simplex.NewInvalidCertificateErrorf(cert.Vote, "%w",
				simplex.NewDuplicatedSignerErrorf("duplicated signer index %d", s.ValidatorIndex))
		}
		seen[s.ValidatorIndex] = struct{}{}

		key, err := v.committee.KeyOf(s.ValidatorIndex)
		if err != nil {
			return simplex.NewInvalidCertificateErrorf(cert.Vote, "signer is not a member of the validator set: %w", err)
		}
		if !key.Verify(s.Sig, msg) {
			return simplex.NewInvalidCertificateErrorf(cert.Vote, "signature of validator %d: %w",
				s.ValidatorIndex, simplex.ErrInvalidSignature)
		}

		weight, err := v.committee.WeightOf(s.ValidatorIndex)
		if err != nil {
			return simplex.NewInvalidCertificateErrorf(cert.Vote, "could not get signer weight: %w", err)
		}
		accumulated += weight
	}
	if threshold := v.committee.QuorumThreshold(); accumulated < threshold {
		return simplex.NewInvalidCertificateErrorf(cert.Vote, "%w",
			simplex.NewInsufficientWeightErrorf("accumulated weight %d is below quorum threshold %d", accumulated, threshold))
	}
	return nil
}

// VerifyCandidate checks that the candidate was proposed by the leader
// scheduled for its slot and carries that leader's valid signature over
// the session-scoped candidate ID.
// Error returns:
//   - simplex.InvalidCandidateError if any check fails
func (v *Verifier) VerifyCandidate(candidate *simplex.Candidate) error {
	id := candidate.ID()
	expected := v.committee.LeaderForSlot(candidate.Slot)
	if candidate.LeaderIndex != expected {
		return simplex.NewInvalidCandidateErrorf(id, "candidate claims leader %d but slot %d is scheduled for %d",
			candidate.LeaderIndex, candidate.Slot, expected)
	}
	key, err := v.committee.KeyOf(candidate.LeaderIndex)
	if err != nil {
		return simplex.NewInvalidCandidateErrorf(id, "leader is not a member of the validator set: %w", err)
	}
	msg := simplex.CandidateSignableMessage(v.committee.SessionID(), id)
	if !key.Verify(candidate.LeaderSig, msg) {
		return simplex.NewInvalidCandidateErrorf(id, "leader signature: %w", simplex.ErrInvalidSignature)
	}
	return nil
}
