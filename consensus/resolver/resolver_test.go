package resolver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/simplexbft/simplex-go/consensus"
	"github.com/simplexbft/simplex-go/consensus/resolver"
	"github.com/simplexbft/simplex-go/consensus/verification"
	"github.com/simplexbft/simplex-go/model/messages"
	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/module/irrecoverable"
	"github.com/simplexbft/simplex-go/module/metrics"
	"github.com/simplexbft/simplex-go/network"
	bstorage "github.com/simplexbft/simplex-go/storage/badger"
	"github.com/simplexbft/simplex-go/utils/unittest"
)

// responderConduit scripts the peer side of resolution round trips.
type responderConduit struct {
	mu       sync.Mutex
	requests int
	respond  func(target uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error)
	unicasts chan *messages.CandidateResponse
}

func newResponderConduit() *responderConduit {
	return &responderConduit{unicasts: make(chan *messages.CandidateResponse, 10)}
}

func (c *responderConduit) Broadcast(interface{}) error { return nil }

func (c *responderConduit) Unicast(_ uint32, event interface{}) error {
	c.unicasts <- event.(*messages.CandidateResponse)
	return nil
}

func (c *responderConduit) Request(_ context.Context, target uint32, req interface{}, _ time.Duration) (interface{}, error) {
	c.mu.Lock()
	c.requests++
	respond := c.respond
	c.mu.Unlock()
	resp, err := respond(target, req.(*messages.CandidateRequest))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *responderConduit) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

var _ network.Conduit = (*responderConduit)(nil)

// stubNetwork hands every registering engine the scripted conduit.
type stubNetwork struct {
	conduit network.Conduit
}

func (n *stubNetwork) Register(network.Channel, network.MessageProcessor) (network.Conduit, error) {
	return n.conduit, nil
}

// resolvedConsumer captures completed resolutions.
type resolvedConsumer struct {
	resolved chan *simplex.CertifiedCandidate
}

func newResolvedConsumer() *resolvedConsumer {
	return &resolvedConsumer{resolved: make(chan *simplex.CertifiedCandidate, 10)}
}

func (c *resolvedConsumer) OnNotarizationObserved(*simplex.Certificate)               {}
func (c *resolvedConsumer) OnFinalizationObserved(*simplex.Certificate)               {}
func (c *resolvedConsumer) OnLeaderWindowObserved(simplex.Slot, *simplex.CandidateID) {}
func (c *resolvedConsumer) OnMisbehaviorDetected(*simplex.MisbehaviorReport)          {}
func (c *resolvedConsumer) OnOwnVoteCast(*simplex.SignedVote)                         {}
func (c *resolvedConsumer) OnCandidateResolved(cc *simplex.CertifiedCandidate) {
	c.resolved <- cc
}

var _ consensus.Consumer = (*resolvedConsumer)(nil)

// harness bundles a running resolver over real badger-backed stores and
// a scripted peer.
type harness struct {
	fixture      *unittest.CommitteeFixture
	resolver     *resolver.Resolver
	conduit      *responderConduit
	consumer     *resolvedConsumer
	candidates   *bstorage.Candidates
	certificates *bstorage.Certificates
}

func withHarness(t *testing.T, prepare func(*harness), f func(*harness)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		fixture := unittest.NewCommitteeFixture(t, 4, 1)
		committee := fixture.Committee(t, 0)

		candidates, err := bstorage.NewCandidates(db)
		require.NoError(t, err)
		certificates, err := bstorage.NewCertificates(db)
		require.NoError(t, err)

		conduit := newResponderConduit()
		consumer := newResolvedConsumer()

		h := &harness{
			fixture:      fixture,
			conduit:      conduit,
			consumer:     consumer,
			candidates:   candidates,
			certificates: certificates,
		}
		if prepare != nil {
			prepare(h)
		}

		r, err := resolver.New(
			unittest.Logger(),
			metrics.NewNoopCollector(),
			committee,
			verification.NewVerifier(committee),
			consumer,
			candidates,
			certificates,
			&stubNetwork{conduit: conduit},
			resolver.WithRetryBase(10*time.Millisecond),
			resolver.WithRetryCap(50*time.Millisecond),
		)
		require.NoError(t, err)
		h.resolver = r

		ctx, cancel := context.WithCancel(context.Background())
		sctx, _ := irrecoverable.WithSignaler(ctx)
		r.Start(sctx)
		unittest.RequireCloseBefore(t, r.Ready(), time.Second, "resolver did not start")
		defer func() {
			cancel()
			unittest.RequireCloseBefore(t, r.Done(), time.Second, "resolver did not stop")
		}()

		f(h)
	})
}

// certified returns a candidate together with a quorum certificate over
// its notarization, plus both in canonical encoding.
func (h *harness) certified(t *testing.T) (*simplex.Candidate, *simplex.Certificate, []byte, []byte) {
	parent := unittest.CandidateIDFixture(0)
	candidate := unittest.CandidateFixture(unittest.WithSlot(1), unittest.WithParent(&parent))
	cert := h.fixture.Certificate(t, simplex.NewNotarizeVote(candidate.ID()), 1, 2, 3)

	encodedCandidate, err := simplex.EncodeCandidate(candidate)
	require.NoError(t, err)
	encodedCert, err := simplex.EncodeCertificate(cert)
	require.NoError(t, err)
	return candidate, cert, encodedCandidate, encodedCert
}

// TestResolveFetchesBothParts verifies a full resolution round trip:
// both parts are fetched from a peer, verified, persisted, announced,
// and memoized for subsequent callers.
func TestResolveFetchesBothParts(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, encodedCert := h.certified(t)

		h.conduit.respond = func(target uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error) {
			require.NotEqual(t, uint32(0), target, "resolver must not query itself")
			require.True(t, req.WantCandidate)
			require.True(t, req.WantCertificate)
			return &messages.CandidateResponse{
				Nonce:       req.Nonce,
				Candidate:   encodedCandidate,
				Certificate: encodedCert,
			}, nil
		}

		cc, err := h.resolver.Resolve(context.Background(), candidate.ID())
		require.NoError(t, err)
		require.Equal(t, candidate.ID(), cc.Candidate.ID())
		require.Equal(t, 1, h.conduit.requestCount())

		// both parts are durable now
		_, err = h.candidates.ByID(candidate.ID())
		require.NoError(t, err)
		_, err = h.certificates.ByCandidateID(candidate.ID())
		require.NoError(t, err)

		announced := unittest.RequireReceiveBefore(t, h.consumer.resolved, time.Second, "expected resolution announcement")
		require.Equal(t, cc, announced)

		// a second resolve is served from memory
		again, err := h.resolver.Resolve(context.Background(), candidate.ID())
		require.NoError(t, err)
		require.Equal(t, cc, again)
		require.Equal(t, 1, h.conduit.requestCount())
	})
}

// TestResolveMergesPartialResponses verifies that parts learned from
// different peers across attempts are merged, and that later requests
// only ask for the missing part.
func TestResolveMergesPartialResponses(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, encodedCert := h.certified(t)

		calls := 0
		h.conduit.respond = func(_ uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error) {
			calls++
			if calls == 1 {
				return &messages.CandidateResponse{Nonce: req.Nonce, Candidate: encodedCandidate}, nil
			}
			require.False(t, req.WantCandidate, "candidate already held, must not be re-requested")
			require.True(t, req.WantCertificate)
			return &messages.CandidateResponse{Nonce: req.Nonce, Certificate: encodedCert}, nil
		}

		cc, err := h.resolver.Resolve(context.Background(), candidate.ID())
		require.NoError(t, err)
		require.Equal(t, candidate.ID(), cc.Candidate.ID())
		require.Equal(t, 2, h.conduit.requestCount())
	})
}

// TestResolveRetriesOnFailure verifies that a failed round trip is
// retried against another peer.
func TestResolveRetriesOnFailure(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, encodedCert := h.certified(t)

		calls := 0
		h.conduit.respond = func(_ uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error) {
			calls++
			if calls == 1 {
				return nil, network.ErrRequestTimeout
			}
			return &messages.CandidateResponse{
				Nonce:       req.Nonce,
				Candidate:   encodedCandidate,
				Certificate: encodedCert,
			}, nil
		}

		cc, err := h.resolver.Resolve(context.Background(), candidate.ID())
		require.NoError(t, err)
		require.Equal(t, candidate.ID(), cc.Candidate.ID())
		require.Equal(t, 2, h.conduit.requestCount())
	})
}

// TestResolveRejectsInvalidCertificate verifies that a sub-quorum
// certificate from a peer is dropped and the resolution keeps retrying
// until a valid one arrives.
func TestResolveRejectsInvalidCertificate(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, encodedCert := h.certified(t)

		subQuorum := h.fixture.Certificate(t, simplex.NewNotarizeVote(candidate.ID()), 1, 2)
		encodedSubQuorum, err := simplex.EncodeCertificate(subQuorum)
		require.NoError(t, err)

		calls := 0
		h.conduit.respond = func(_ uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error) {
			calls++
			if calls == 1 {
				return &messages.CandidateResponse{
					Nonce:       req.Nonce,
					Candidate:   encodedCandidate,
					Certificate: encodedSubQuorum,
				}, nil
			}
			return &messages.CandidateResponse{Nonce: req.Nonce, Certificate: encodedCert}, nil
		}

		cc, err := h.resolver.Resolve(context.Background(), candidate.ID())
		require.NoError(t, err)
		require.Equal(t, candidate.ID(), cc.Candidate.ID())
		require.Equal(t, 2, h.conduit.requestCount())
	})
}

// TestConcurrentResolversShareFlight verifies that concurrent callers
// for the same candidate share one fetch loop, and that one caller
// cancelling abandons only its own wait.
func TestConcurrentResolversShareFlight(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, encodedCert := h.certified(t)

		gate := make(chan struct{})
		h.conduit.respond = func(_ uint32, req *messages.CandidateRequest) (*messages.CandidateResponse, error) {
			<-gate
			return &messages.CandidateResponse{
				Nonce:       req.Nonce,
				Candidate:   encodedCandidate,
				Certificate: encodedCert,
			}, nil
		}

		cancelled, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() {
			_, err := h.resolver.Resolve(cancelled, candidate.ID())
			errs <- err
		}()

		results := make(chan *simplex.CertifiedCandidate, 2)
		for i := 0; i < 2; i++ {
			go func() {
				cc, err := h.resolver.Resolve(context.Background(), candidate.ID())
				require.NoError(t, err)
				results <- cc
			}()
		}

		// the cancelled caller abandons its wait while the flight is
		// still blocked on the peer
		cancel()
		err := unittest.RequireReceiveBefore(t, errs, time.Second, "expected cancelled wait")
		require.ErrorIs(t, err, context.Canceled)

		close(gate)
		first := unittest.RequireReceiveBefore(t, results, time.Second, "expected first resolution")
		second := unittest.RequireReceiveBefore(t, results, time.Second, "expected second resolution")
		require.Equal(t, first, second)
		require.Equal(t, 1, h.conduit.requestCount())
	})
}

// TestRestoreFromStorage verifies that a resolution completed before a
// restart is served from durable state without querying peers.
func TestRestoreFromStorage(t *testing.T) {
	var id simplex.CandidateID
	prepare := func(h *harness) {
		candidate, cert, _, _ := h.certified(t)
		id = candidate.ID()
		require.NoError(t, h.candidates.Store(candidate))
		require.NoError(t, h.certificates.Store(cert))
	}
	withHarness(t, prepare, func(h *harness) {
		cc, err := h.resolver.Resolve(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, id, cc.Candidate.ID())
		require.Equal(t, 0, h.conduit.requestCount())
	})
}

// TestProcessServesLocalParts verifies that peer requests are answered
// from local storage, omitting unknown parts.
func TestProcessServesLocalParts(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		candidate, _, encodedCandidate, _ := h.certified(t)
		require.NoError(t, h.candidates.Store(candidate))

		err := h.resolver.Process(network.CandidateResolution, 2, &messages.CandidateRequest{
			CandidateID:     candidate.ID(),
			WantCandidate:   true,
			WantCertificate: true,
			Nonce:           42,
		})
		require.NoError(t, err)

		response := unittest.RequireReceiveBefore(t, h.conduit.unicasts, time.Second, "expected response")
		require.Equal(t, uint64(42), response.Nonce)
		require.Equal(t, encodedCandidate, response.Candidate)
		require.Empty(t, response.Certificate)
	})
}

// TestProcessRejectsUnexpectedEvent verifies that non-request traffic
// on the resolution channel is an error.
func TestProcessRejectsUnexpectedEvent(t *testing.T) {
	withHarness(t, nil, func(h *harness) {
		err := h.resolver.Process(network.CandidateResolution, 2, "bogus")
		require.Error(t, err)
	})
}
