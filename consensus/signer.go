package consensus

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// Signer casts votes on behalf of the local validator. Implementations
// bind the session ID into the signed message and may delegate the raw
// signing operation to external key management.
type Signer interface {
	// CreateVote signs the given vote body and returns the signed vote
	// attributed to the local validator.
	CreateVote(vote simplex.Vote) (*simplex.SignedVote, error)

	// SignCandidate attributes the draft candidate to the local
	// validator, signs its session-scoped ID and returns the complete
	// candidate. The draft's LeaderIndex and LeaderSig are overwritten.
	SignCandidate(draft simplex.UntrustedCandidate) (*simplex.Candidate, error)
}

// Verifier checks the cryptographic validity of votes and certificates
// against the session's validator set.
type Verifier interface {
	// VerifyVote checks the signature of a single signed vote.
	// Error returns:
	//   - simplex.InvalidVoteError if the signer index is not in the
	//     validator set or the signature is invalid
	VerifyVote(sv *simplex.SignedVote) error

	// VerifyCertificate checks an untrusted certificate: every signer
	// index must be in range and unique, every signature must verify
	// against the certificate's vote, and the accumulated weight of
	// verified signatures must reach the quorum threshold. The
	// advertised signature count is never trusted; weight is recomputed
	// from verified signatures only.
	// Error returns:
	//   - simplex.InvalidCertificateError if any check fails
	VerifyCertificate(cert *simplex.Certificate) error

	// VerifyCandidate checks that the candidate's leader signature was
	// produced by the leader scheduled for the candidate's slot.
	// Error returns:
	//   - simplex.InvalidCandidateError if the leader index does not
	//     match the schedule or the signature is invalid
	VerifyCandidate(candidate *simplex.Candidate) error
}
