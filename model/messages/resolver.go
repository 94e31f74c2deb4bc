package messages

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// CandidateRequest asks a peer for the parts of a candidate's data the
// requester is still missing. The flags indicate which parts are
// wanted; a responder answers from its local data only and never
// queries further peers on the requester's behalf.
type CandidateRequest struct {
	CandidateID     simplex.CandidateID
	WantCandidate   bool
	WantCertificate bool
	Nonce           uint64
}

// CandidateResponse carries whatever parts of the requested data the
// responder holds locally. Absent fields signal "still unknown", not an
// error; the requester merges partial responses and retries elsewhere.
type CandidateResponse struct {
	Nonce       uint64
	Candidate   []byte // canonical candidate encoding, empty if unknown
	Certificate []byte // canonical certificate encoding, empty if unknown
}

// CandidateProposal announces a newly collated candidate to the
// session's validators.
type CandidateProposal struct {
	Candidate []byte // canonical candidate encoding
}
