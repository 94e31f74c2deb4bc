// Package verification implements vote signing and the cryptographic
// checks for votes and certificates, over the session-scoped canonical
// vote encoding.
package verification

import (
	"fmt"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module"
)

// Signer casts votes for the local validator. The raw signing operation
// is delegated to module.Local, which may be backed by key management
// hardware.
type Signer struct {
	committee consensus.Committee
	local     module.Local
}

var _ consensus.Signer = (*Signer)(nil)

// NewSigner instantiates a Signer for the local validator.
func NewSigner(committee consensus.Committee, local module.Local) *Signer {
	return &Signer{
		committee: committee,
		local:     local,
	}
}

// CreateVote signs the session-scoped encoding of the vote body and
// returns the signed vote attributed to the local validator.
func (s *Signer) CreateVote(vote simplex.Vote) (*simplex.SignedVote, error) {
	msg := simplex.VoteSignableMessage(s.committee.SessionID(), vote)
	sig, err := s.local.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("could not sign vote %v: %w", vote, err)
	}
	sv, err := simplex.NewSignedVote(simplex.UntrustedSignedVote{
		ValidatorIndex: s.local.Index(),
		Vote:           vote,
		Signature:      sig,
	})
	if err != nil {
		return nil, fmt.Errorf("could not construct signed vote: %w", err)
	}
	return sv, nil
}

// SignCandidate attributes the draft to the local validator and signs
// the session-scoped encoding of the draft's ID. The draft's
// LeaderIndex and LeaderSig are overwritten.
func (s *Signer) SignCandidate(draft simplex.UntrustedCandidate) (*simplex.Candidate, error) {
	draft.LeaderIndex = s.local.Index()
	unsigned := simplex.Candidate(draft)
	id := unsigned.ID()
	sig, err := s.local.Sign(simplex.CandidateSignableMessage(s.committee.SessionID(), id))
	if err != nil {
		return nil, fmt.Errorf("could not sign candidate %v: %w", id, err)
	}
	draft.LeaderSig = sig
	candidate, err := simplex.NewCandidate(draft)
	if err != nil {
		return nil, fmt.Errorf("could not construct candidate: %w", err)
	}
	return candidate, nil
}
