package simplex

import (
	"fmt"
)

// Slot identifies one position in the ordered sequence of finalization
// decisions. Exactly one candidate is ever finalized per slot.
type Slot uint64

// CandidateID uniquely identifies a candidate by its slot and the
// digest of its canonical hash-data. Two candidates with equal IDs are
// guaranteed to have identical content.
type CandidateID struct {
	Slot Slot
	Hash Identifier
}

func (id CandidateID) String() string {
	return fmt.Sprintf("%d@%v", id.Slot, id.Hash)
}

// hashData is the canonical pre-image of a candidate's content hash:
// the block ID (or the reference ID of an empty placeholder) plus the
// parent's hash.
type hashData struct {
	_          struct{} `cbor:",toarray"`
	ContentID  Identifier
	ParentHash Identifier
}

// Candidate is one proposed entry for a slot. It is immutable after
// construction and shared by value between the pool, the voter and the
// resolver.
type Candidate struct {
	Slot        Slot
	Parent      *CandidateID // nil denotes genesis
	LeaderIndex uint32
	Block       *BlockPayload   // set for a regular candidate
	EmptyRef    *EmptyReference // set for an empty/skip placeholder
	LeaderSig   []byte
}

// BlockPayload carries the block produced by the slot leader. The
// consensus core treats the payload as opaque; validation of its
// content is delegated to the external collaborator.
type BlockPayload struct {
	BlockID Identifier
	Data    []byte
}

// EmptyReference is the placeholder body of a candidate proposing that
// the slot carries no block. RefID points at the state the placeholder
// was derived from.
type EmptyReference struct {
	RefID Identifier
}

// UntrustedCandidate is an input-only representation of a Candidate
// used for construction, so constructors are invoked with named fields.
type UntrustedCandidate Candidate

// NewCandidate validates the structural invariants of a candidate and
// returns the trusted representation. All errors indicate that a valid
// Candidate cannot be constructed from the input.
func NewCandidate(untrusted UntrustedCandidate) (*Candidate, error) {
	if (untrusted.Block == nil) == (untrusted.EmptyRef == nil) {
		return nil, fmt.Errorf("candidate must carry exactly one of block payload and empty reference")
	}
	if untrusted.Parent == nil && untrusted.Slot != 0 {
		return nil, fmt.Errorf("only the genesis candidate (slot 0) may omit a parent, got slot %d", untrusted.Slot)
	}
	if untrusted.Parent != nil && untrusted.Parent.Slot >= untrusted.Slot {
		return nil, fmt.Errorf("parent slot (%d) must precede candidate slot (%d)", untrusted.Parent.Slot, untrusted.Slot)
	}
	if len(untrusted.LeaderSig) == 0 {
		return nil, fmt.Errorf("LeaderSig must not be empty")
	}
	c := Candidate(untrusted)
	return &c, nil
}

// ContentID returns the digest identifying the candidate's body: the
// block ID for a regular candidate, the reference ID for a placeholder.
func (c *Candidate) ContentID() Identifier {
	if c.Block != nil {
		return c.Block.BlockID
	}
	return c.EmptyRef.RefID
}

// ID returns the candidate's identifier, its slot plus the content
// hash over the canonical hash-data.
func (c *Candidate) ID() CandidateID {
	var parentHash Identifier
	if c.Parent != nil {
		parentHash = c.Parent.Hash
	}
	return CandidateID{
		Slot: c.Slot,
		Hash: MakeID(hashData{ContentID: c.ContentID(), ParentHash: parentHash}),
	}
}

// CertifiedCandidate holds a candidate together with a notarization
// certificate pointing to it. It satisfies:
// Candidate.ID() == Certificate.Vote.CandidateID() and the certificate
// is a notarization.
type CertifiedCandidate struct {
	Candidate   *Candidate
	Certificate *Certificate
}

// NewCertifiedCandidate checks the consistency requirements between the
// candidate and the certifying certificate and errors otherwise.
func NewCertifiedCandidate(candidate *Candidate, cert *Certificate) (*CertifiedCandidate, error) {
	if cert.Vote.Kind != VoteNotarize {
		return nil, fmt.Errorf("certifying certificate must be a notarization, got %s", cert.Vote.Kind)
	}
	if candidate.ID() != cert.Vote.CandidateID() {
		return nil, fmt.Errorf("certificate is for candidate %v, expected %v", cert.Vote.CandidateID(), candidate.ID())
	}
	return &CertifiedCandidate{Candidate: candidate, Certificate: cert}, nil
}

// ID returns the identifier of the certified candidate.
func (cc *CertifiedCandidate) ID() CandidateID {
	return cc.Certificate.Vote.CandidateID()
}
