package simplex

import (
	"fmt"
)

// Signature is one validator's contribution to a certificate.
type Signature struct {
	ValidatorIndex uint32
	Sig            []byte
}

// Certificate is a quorum witness: an aggregate of signatures from
// validators holding at least ⌊2W/3⌋+1 of the total weight W, all over
// the identical vote body. It is not itself a vote; it can be handed to
// any party as transferable proof that the quorum event occurred.
//
// A Certificate obtained from an untrusted source must pass
// verification.VerifyCertificate before use.
type Certificate struct {
	Vote       Vote
	Signatures []Signature
}

// NewCertificate assembles a certificate from signed votes which all
// carry the given vote body. It enforces structural consistency only;
// the caller is responsible for having applied signature and quorum
// checks to the contributing votes.
func NewCertificate(vote Vote, votes []*SignedVote) (*Certificate, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("certificate requires at least one contributing vote")
	}
	seen := make(map[uint32]struct{}, len(votes))
	sigs := make([]Signature, 0, len(votes))
	for _, sv := range votes {
		if sv.Vote != vote {
			return nil, fmt.Errorf("contributing vote %v does not match certificate vote %v", sv.Vote, vote)
		}
		if _, ok := seen[sv.ValidatorIndex]; ok {
			return nil, NewDuplicatedSignerErrorf("duplicated signer index %d", sv.ValidatorIndex)
		}
		seen[sv.ValidatorIndex] = struct{}{}
		sigs = append(sigs, Signature{ValidatorIndex: sv.ValidatorIndex, Sig: sv.Signature})
	}
	return &Certificate{Vote: vote, Signatures: sigs}, nil
}

// SignerIndices returns the indices of all contributing validators, in
// certificate order.
func (c *Certificate) SignerIndices() []uint32 {
	indices := make([]uint32, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		indices = append(indices, s.ValidatorIndex)
	}
	return indices
}

// ID returns a content identifier for the certificate.
func (c *Certificate) ID() Identifier {
	return MakeID(c)
}

func (c *Certificate) String() string {
	return fmt.Sprintf("cert{%v, %d signers}", c.Vote, len(c.Signatures))
}
