package simplex

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire encoding of consensus entities. All entities use CBOR core
// deterministic encoding so that any two honest encoders produce the
// same bytes for the same value, which keeps content identifiers and
// signatures stable across implementations.

var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("could not init cbor decoder: %s", err))
	}
}

// signableVote is the session-scoped pre-image covered by a vote
// signature. Binding the session ID into the signed message prevents
// replay of votes across sessions.
type signableVote struct {
	_         struct{} `cbor:",toarray"`
	SessionID Identifier
	Vote      Vote
}

// VoteSignableMessage returns the canonical byte string which a
// validator signs when casting the given vote in the given session.
func VoteSignableMessage(sessionID Identifier, vote Vote) []byte {
	data, err := fingerprintMode.Marshal(signableVote{SessionID: sessionID, Vote: vote})
	if err != nil {
		panic(fmt.Sprintf("could not encode signable vote: %s", err))
	}
	return data
}

// signableCandidate is the session-scoped pre-image covered by a
// candidate's leader signature. The candidate ID already commits to the
// body and the parent.
type signableCandidate struct {
	_         struct{} `cbor:",toarray"`
	SessionID Identifier
	ID        CandidateID
}

// CandidateSignableMessage returns the canonical byte string which a
// leader signs when proposing the candidate with the given ID in the
// given session.
func CandidateSignableMessage(sessionID Identifier, id CandidateID) []byte {
	data, err := fingerprintMode.Marshal(signableCandidate{SessionID: sessionID, ID: id})
	if err != nil {
		panic(fmt.Sprintf("could not encode signable candidate: %s", err))
	}
	return data
}

// EncodeSignedVote encodes a signed vote into its canonical wire form.
func EncodeSignedVote(sv *SignedVote) ([]byte, error) {
	data, err := fingerprintMode.Marshal(sv)
	if err != nil {
		return nil, fmt.Errorf("could not encode signed vote: %w", err)
	}
	return data, nil
}

// DecodeSignedVote decodes a signed vote from its wire form and applies
// structural validation. Cryptographic verification is the caller's
// concern.
func DecodeSignedVote(data []byte) (*SignedVote, error) {
	var untrusted UntrustedSignedVote
	err := decMode.Unmarshal(data, &untrusted)
	if err != nil {
		return nil, fmt.Errorf("could not decode signed vote: %w", err)
	}
	sv, err := NewSignedVote(untrusted)
	if err != nil {
		return nil, fmt.Errorf("decoded signed vote is structurally invalid: %w", err)
	}
	return sv, nil
}

// EncodeCertificate encodes a certificate into its canonical wire form.
func EncodeCertificate(cert *Certificate) ([]byte, error) {
	data, err := fingerprintMode.Marshal(cert)
	if err != nil {
		return nil, fmt.Errorf("could not encode certificate: %w", err)
	}
	return data, nil
}

// DecodeCertificate decodes a certificate from its wire form. The
// result is structurally sound but untrusted: the advertised signature
// set proves nothing until verification recomputes the quorum weight
// from verified signatures.
func DecodeCertificate(data []byte) (*Certificate, error) {
	var cert Certificate
	err := decMode.Unmarshal(data, &cert)
	if err != nil {
		return nil, fmt.Errorf("could not decode certificate: %w", err)
	}
	if len(cert.Signatures) == 0 {
		return nil, fmt.Errorf("decoded certificate carries no signatures")
	}
	return &cert, nil
}

// EncodeCandidate encodes a candidate into its canonical wire form.
func EncodeCandidate(candidate *Candidate) ([]byte, error) {
	data, err := fingerprintMode.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("could not encode candidate: %w", err)
	}
	return data, nil
}

// DecodeCandidate decodes a candidate from its wire form and applies
// structural validation.
func DecodeCandidate(data []byte) (*Candidate, error) {
	var untrusted UntrustedCandidate
	err := decMode.Unmarshal(data, &untrusted)
	if err != nil {
		return nil, fmt.Errorf("could not decode candidate: %w", err)
	}
	candidate, err := NewCandidate(untrusted)
	if err != nil {
		return nil, fmt.Errorf("decoded candidate is structurally invalid: %w", err)
	}
	return candidate, nil
}
