package unittest

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simplexbft/simplex-go/consensus/committees"
	"github.com/simplexbft/simplex-go/consensus/verification"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module/local"
)

// IdentifierFixture returns a random identifier.
func IdentifierFixture() simplex.Identifier {
	var id simplex.Identifier
	_, _ = rand.Read(id[:])
	return id
}

// CandidateIDFixture returns a random candidate ID for the given slot.
func CandidateIDFixture(slot simplex.Slot) simplex.CandidateID {
	return simplex.CandidateID{Slot: slot, Hash: IdentifierFixture()}
}

// SignatureFixture returns random bytes of ed25519 signature length.
// The result does not verify under any key.
func SignatureFixture() []byte {
	sig := make([]byte, ed25519.SignatureSize)
	_, _ = rand.Read(sig)
	return sig
}

// CandidateFixture returns a structurally valid candidate. Its leader
// signature is random; use CommitteeFixture.SignCandidate where the
// signature must verify.
func CandidateFixture(opts ...func(*simplex.UntrustedCandidate)) *simplex.Candidate {
	parent := CandidateIDFixture(0)
	untrusted := simplex.UntrustedCandidate{
		Slot:        1,
		Parent:      &parent,
		LeaderIndex: 0,
		Block: &simplex.BlockPayload{
			BlockID: IdentifierFixture(),
			Data:    []byte("payload"),
		},
		LeaderSig: SignatureFixture(),
	}
	for _, opt := range opts {
		opt(&untrusted)
	}
	candidate, err := simplex.NewCandidate(untrusted)
	if err != nil {
		panic(err)
	}
	return candidate
}

// WithSlot sets the candidate's slot.
func WithSlot(slot simplex.Slot) func(*simplex.UntrustedCandidate) {
	return func(c *simplex.UntrustedCandidate) {
		c.Slot = slot
	}
}

// WithParent sets the candidate's parent; nil denotes genesis.
func WithParent(parent *simplex.CandidateID) func(*simplex.UntrustedCandidate) {
	return func(c *simplex.UntrustedCandidate) {
		c.Parent = parent
	}
}

// WithLeaderIndex sets the candidate's claimed leader.
func WithLeaderIndex(index uint32) func(*simplex.UntrustedCandidate) {
	return func(c *simplex.UntrustedCandidate) {
		c.LeaderIndex = index
	}
}

// CommitteeFixture holds the full key material of a test validator set,
// so tests can produce votes, certificates and candidates that verify.
type CommitteeFixture struct {
	SessionID  simplex.Identifier
	WindowSize uint64
	Weights    []uint64
	keys       []ed25519.PrivateKey
	validators []committees.Validator
}

// NewCommitteeFixture generates an equal-weight validator set of the
// given size.
func NewCommitteeFixture(t testing.TB, n int, windowSize uint64) *CommitteeFixture {
	f := &CommitteeFixture{
		SessionID:  IdentifierFixture(),
		WindowSize: windowSize,
	}
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		key, err := verification.NewEd25519Key(pub)
		require.NoError(t, err)
		f.keys = append(f.keys, priv)
		f.validators = append(f.validators, committees.Validator{Weight: 1, Key: key})
		f.Weights = append(f.Weights, 1)
	}
	return f
}

// Committee returns the committee as seen by the validator with the
// given index.
func (f *CommitteeFixture) Committee(t testing.TB, self uint32) *committees.Static {
	committee, err := committees.NewStatic(f.SessionID, f.validators, f.WindowSize, self)
	require.NoError(t, err)
	return committee
}

// CommitteeWithSession returns the same validator set bound to a
// different session ID, for session-binding tests.
func (f *CommitteeFixture) CommitteeWithSession(t testing.TB, sessionID simplex.Identifier, self uint32) *committees.Static {
	committee, err := committees.NewStatic(sessionID, f.validators, f.WindowSize, self)
	require.NoError(t, err)
	return committee
}

// Local returns the signing identity of the validator with the given
// index.
func (f *CommitteeFixture) Local(t testing.TB, index uint32) *local.Local {
	l, err := local.New(index, f.keys[index])
	require.NoError(t, err)
	return l
}

// SignedVote returns the given vote signed by the validator with the
// given index. The signature verifies under the fixture's session.
func (f *CommitteeFixture) SignedVote(t testing.TB, index uint32, vote simplex.Vote) *simplex.SignedVote {
	msg := simplex.VoteSignableMessage(f.SessionID, vote)
	sv, err := simplex.NewSignedVote(simplex.UntrustedSignedVote{
		ValidatorIndex: index,
		Vote:           vote,
		Signature:      ed25519.Sign(f.keys[index], msg),
	})
	require.NoError(t, err)
	return sv
}

// Certificate returns a certificate for the given vote carrying the
// signatures of the validators with the given indices.
func (f *CommitteeFixture) Certificate(t testing.TB, vote simplex.Vote, indices ...uint32) *simplex.Certificate {
	votes := make([]*simplex.SignedVote, 0, len(indices))
	for _, index := range indices {
		votes = append(votes, f.SignedVote(t, index, vote))
	}
	cert, err := simplex.NewCertificate(vote, votes)
	require.NoError(t, err)
	return cert
}

// SignCandidate attributes the draft to its scheduled leader and signs
// it so the signature verifies under the fixture's session.
func (f *CommitteeFixture) SignCandidate(t testing.TB, draft simplex.UntrustedCandidate) *simplex.Candidate {
	committee := f.Committee(t, 0)
	leader := committee.LeaderForSlot(draft.Slot)
	signer := verification.NewSigner(f.Committee(t, leader), f.Local(t, leader))
	candidate, err := signer.SignCandidate(draft)
	require.NoError(t, err)
	return candidate
}
